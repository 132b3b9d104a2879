// Package query is the read-only view of a corpus used by pages and the API.
// Every accessor hides unpublished records and returns results newest first.
package query

import (
	"sort"

	"github.com/renderinc/blogpipe/internal/content"
)

// PostsPerPage is the listing page size.
const PostsPerPage = 6

// Count is a tag or category with the number of posts carrying it.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Store answers queries over one corpus snapshot. It is immutable and safe for
// concurrent use.
type Store struct {
	listed []content.PostRecord
	byID   map[string]int
}

func New(corpus *content.Corpus) *Store {
	listed := corpus.Published()
	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].PublishDate.After(listed[j].PublishDate)
	})

	byID := make(map[string]int, len(listed))
	for i, r := range listed {
		byID[r.Identifier] = i
	}
	return &Store{listed: listed, byID: byID}
}

// ListAll returns every published record by publish date, newest first. Equal
// dates keep corpus order.
func (s *Store) ListAll() []content.PostRecord {
	return s.filter(nil, func(*content.PostRecord) bool { return true })
}

// ByIdentifier finds a published record. A miss is a normal outcome.
func (s *Store) ByIdentifier(id string) (content.PostRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return content.PostRecord{}, false
	}
	return s.listed[i], true
}

func (s *Store) ByLocale(locale content.Locale) []content.PostRecord {
	return s.filter(&locale, func(*content.PostRecord) bool { return true })
}

// ByTag filters by exact tag membership, optionally within one locale.
func (s *Store) ByTag(tag string, locale *content.Locale) []content.PostRecord {
	return s.filter(locale, func(r *content.PostRecord) bool { return r.HasTag(tag) })
}

// ByCategory filters by exact category membership, optionally within one locale.
func (s *Store) ByCategory(category string, locale *content.Locale) []content.PostRecord {
	return s.filter(locale, func(r *content.PostRecord) bool { return r.HasCategory(category) })
}

// TagCounts counts tags over the listed records, most used first. Ties keep
// the order in which tags were first seen.
func (s *Store) TagCounts(locale *content.Locale) []Count {
	return count(s.filter(locale, nil), func(r *content.PostRecord) []string { return r.Tags })
}

func (s *Store) CategoryCounts(locale *content.Locale) []Count {
	return count(s.filter(locale, nil), func(r *content.PostRecord) []string { return r.Categories })
}

func (s *Store) filter(locale *content.Locale, keep func(*content.PostRecord) bool) []content.PostRecord {
	out := []content.PostRecord{}
	for i := range s.listed {
		r := &s.listed[i]
		if locale != nil && r.Locale != *locale {
			continue
		}
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, *r)
	}
	return out
}

func count(records []content.PostRecord, values func(*content.PostRecord) []string) []Count {
	counts := []Count{}
	index := make(map[string]int)
	for i := range records {
		for _, v := range values(&records[i]) {
			if j, ok := index[v]; ok {
				counts[j].Count++
				continue
			}
			index[v] = len(counts)
			counts = append(counts, Count{Name: v, Count: 1})
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return counts
}
