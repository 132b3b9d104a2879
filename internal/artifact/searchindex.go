// Package artifact generates the static files derived from a corpus: the
// search index and the RSS feed. Generation is a pure function of the corpus.
package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/renderinc/blogpipe/internal/content"
)

// SearchIndex serializes the published records in corpus order.
func SearchIndex(corpus *content.Corpus) ([]byte, error) {
	published := corpus.Published()
	entries := make([]content.SearchIndexEntry, len(published))
	for i := range published {
		entries[i] = published[i].SearchEntry()
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal search index: %w", err)
	}
	return data, nil
}

// ParseSearchIndex decodes a search index artifact.
func ParseSearchIndex(data []byte) ([]content.SearchIndexEntry, error) {
	var entries []content.SearchIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode search index: %w", err)
	}
	return entries, nil
}
