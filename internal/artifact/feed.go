package artifact

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"text/template"

	"github.com/renderinc/blogpipe/internal/config"
	"github.com/renderinc/blogpipe/internal/content"
)

// MaxFeedItems caps the feed to the most recent posts.
const MaxFeedItems = 20

// FeedItem is one <item> of the feed. Fields hold raw text; escaping happens
// in the template.
type FeedItem struct {
	Title       string
	Link        string
	Description string
	PubDate     string
}

type feedData struct {
	Title       string
	Link        string
	Description string
	Language    string
	SelfLink    string
	Items       []FeedItem
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

var feedTemplate = template.Must(template.New("feed").Funcs(template.FuncMap{"x": EscapeXML}).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>{{x .Title}}</title>
    <link>{{x .Link}}</link>
    <description>{{x .Description}}</description>
    <language>{{x .Language}}</language>
    <atom:link href="{{x .SelfLink}}" rel="self" type="application/rss+xml"/>
{{- range .Items}}
    <item>
      <title>{{x .Title}}</title>
      <link>{{x .Link}}</link>
      <description>{{x .Description}}</description>
      <pubDate>{{x .PubDate}}</pubDate>
      <guid>{{x .Link}}</guid>
    </item>
{{- end}}
  </channel>
</rss>
`))

// FeedItems selects the published records, newest first (ties keep corpus
// order), capped at MaxFeedItems.
func FeedItems(corpus *content.Corpus, site config.SiteConfig) []FeedItem {
	published := corpus.Published()
	sort.SliceStable(published, func(i, j int) bool {
		return published[i].PublishDate.After(published[j].PublishDate)
	})
	if len(published) > MaxFeedItems {
		published = published[:MaxFeedItems]
	}

	items := make([]FeedItem, len(published))
	for i, p := range published {
		items[i] = FeedItem{
			Title:       p.Title,
			Link:        PostURL(site, p.Identifier),
			Description: p.Description,
			PubDate:     p.PublishDate.UTC().Format(http.TimeFormat),
		}
	}
	return items
}

// Feed renders the RSS 2.0 document for corpus.
func Feed(corpus *content.Corpus, site config.SiteConfig) ([]byte, error) {
	data := feedData{
		Title:       site.Title,
		Link:        site.URL,
		Description: site.Description,
		Language:    site.Language,
		SelfLink:    strings.TrimRight(site.URL, "/") + site.FeedPath,
		Items:       FeedItems(corpus, site),
	}

	var buf bytes.Buffer
	if err := feedTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render feed: %w", err)
	}
	return buf.Bytes(), nil
}

// PostURL is the public URL of a post.
func PostURL(site config.SiteConfig, identifier string) string {
	return strings.TrimRight(site.URL, "/") + site.BlogPath + "/" + identifier
}
