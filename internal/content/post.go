package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/renderinc/blogpipe/internal/document"
)

// Locale is one of the site's supported content languages.
type Locale string

const (
	LocaleZH Locale = "zh"
	LocaleEN Locale = "en"
)

// Locales lists every supported locale in display order.
var Locales = []Locale{LocaleZH, LocaleEN}

// ParseLocale validates s against the supported locales.
func ParseLocale(s string) (Locale, error) {
	for _, l := range Locales {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported locale %q", s)
}

// PostRecord is a compiled post. Records are built once and never mutated.
type PostRecord struct {
	SlugPath           []string
	Identifier         string
	Title              string
	Description        string
	PublishDate        time.Time
	UpdatedDate        *time.Time
	Published          bool
	Locale             Locale
	Tags               []string
	Categories         []string
	Author             string
	CoverImage         string
	Body               *document.Unit
	BodyPlainText      string
	Headings           []document.Heading
	ReadingTimeMinutes int
	SourcePath         string
	ContentHash        string
}

// Slug joins the slug path with "/".
func (p *PostRecord) Slug() string {
	return strings.Join(p.SlugPath, "/")
}

// HasTag reports exact membership.
func (p *PostRecord) HasTag(tag string) bool {
	return contains(p.Tags, tag)
}

// HasCategory reports exact membership.
func (p *PostRecord) HasCategory(category string) bool {
	return contains(p.Categories, category)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// SearchIndexEntry is the searchable projection of a published post.
type SearchIndexEntry struct {
	Identifier    string   `json:"identifier"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	BodyPlainText string   `json:"bodyPlainText"`
	Tags          []string `json:"tags"`
	Categories    []string `json:"categories"`
	Locale        Locale   `json:"locale"`
}
