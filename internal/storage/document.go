package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/renderinc/blogpipe/internal/content"
	"github.com/renderinc/blogpipe/internal/document"
)

// Post is one row of the corpus snapshot
type Post struct {
	Identifier    string     `db:"identifier"`
	Position      int        `db:"position"`
	Slug          string     `db:"slug"`
	Title         string     `db:"title"`
	Description   string     `db:"description"`
	PublishDate   time.Time  `db:"publish_date"`
	UpdatedDate   *time.Time `db:"updated_date"` // NULL if never updated
	Published     bool       `db:"published"`
	Locale        string     `db:"locale"`
	Tags          string     `db:"tags"`       // JSON array
	Categories    string     `db:"categories"` // JSON array
	Author        string     `db:"author"`
	CoverImage    string     `db:"cover_image"`
	Body          string     `db:"body"` // compiled unit JSON
	BodyPlainText string     `db:"body_plain_text"`
	Headings      string     `db:"headings"` // JSON array
	ReadingTime   int        `db:"reading_time"`
	SourcePath    string     `db:"source_path"`
	ContentHash   string     `db:"content_hash"`
	BuiltAt       time.Time  `db:"built_at"`
}

func newPost(r *content.PostRecord, position int, builtAt time.Time) (*Post, error) {
	body, err := r.Body.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	tags, err := json.Marshal(nonNil(r.Tags))
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	categories, err := json.Marshal(nonNil(r.Categories))
	if err != nil {
		return nil, fmt.Errorf("marshal categories: %w", err)
	}
	headings, err := json.Marshal(r.Headings)
	if err != nil {
		return nil, fmt.Errorf("marshal headings: %w", err)
	}

	return &Post{
		Identifier:    r.Identifier,
		Position:      position,
		Slug:          r.Slug(),
		Title:         r.Title,
		Description:   r.Description,
		PublishDate:   r.PublishDate,
		UpdatedDate:   r.UpdatedDate,
		Published:     r.Published,
		Locale:        string(r.Locale),
		Tags:          string(tags),
		Categories:    string(categories),
		Author:        r.Author,
		CoverImage:    r.CoverImage,
		Body:          string(body),
		BodyPlainText: r.BodyPlainText,
		Headings:      string(headings),
		ReadingTime:   r.ReadingTimeMinutes,
		SourcePath:    r.SourcePath,
		ContentHash:   r.ContentHash,
		BuiltAt:       builtAt,
	}, nil
}

// Record decodes the row back into a post record.
func (p *Post) Record() (*content.PostRecord, error) {
	unit, err := document.Unmarshal([]byte(p.Body))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", p.Identifier, err)
	}
	locale, err := content.ParseLocale(p.Locale)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", p.Identifier, err)
	}

	rec := &content.PostRecord{
		SlugPath:           splitSlug(p.Slug),
		Identifier:         p.Identifier,
		Title:              p.Title,
		Description:        p.Description,
		PublishDate:        p.PublishDate.UTC(),
		Published:          p.Published,
		Locale:             locale,
		Author:             p.Author,
		CoverImage:         p.CoverImage,
		Body:               unit,
		BodyPlainText:      p.BodyPlainText,
		ReadingTimeMinutes: p.ReadingTime,
		SourcePath:         p.SourcePath,
		ContentHash:        p.ContentHash,
	}
	if p.UpdatedDate != nil {
		u := p.UpdatedDate.UTC()
		rec.UpdatedDate = &u
	}
	if err := json.Unmarshal([]byte(p.Tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("post %s: decode tags: %w", p.Identifier, err)
	}
	if err := json.Unmarshal([]byte(p.Categories), &rec.Categories); err != nil {
		return nil, fmt.Errorf("post %s: decode categories: %w", p.Identifier, err)
	}
	if err := json.Unmarshal([]byte(p.Headings), &rec.Headings); err != nil {
		return nil, fmt.Errorf("post %s: decode headings: %w", p.Identifier, err)
	}
	return rec, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func splitSlug(slug string) []string {
	return strings.Split(slug, "/")
}
