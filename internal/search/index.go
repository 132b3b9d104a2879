package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/renderinc/blogpipe/internal/content"
)

const (
	analyzerName = "forward"
	textField    = "text"
)

// Index wraps an in-memory Bleve index over search entries. Documents are
// keyed by entry position.
type Index struct {
	index    bleve.Index
	analyzer analysis.Analyzer
	size     int
}

type indexedEntry struct {
	Text string `json:"text"`
}

// buildIndexMapping indexes one concatenated text field with a unicode
// word tokenizer and lowercasing, and no stemming
func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = analyzerName
	textFieldMapping.Store = false
	textFieldMapping.IncludeTermVectors = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(textField, textFieldMapping)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = analyzerName
	return indexMapping, nil
}

// NewIndex indexes entries by position.
func NewIndex(entries []content.SearchIndexEntry) (*Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	batch := idx.NewBatch()
	for i, e := range entries {
		if err := batch.Index(docID(i), indexedEntry{Text: entryText(e)}); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, fmt.Errorf("execute batch: %w", err)
	}

	return &Index{
		index:    idx,
		analyzer: indexMapping.AnalyzerNamed(analyzerName),
		size:     len(entries),
	}, nil
}

func entryText(e content.SearchIndexEntry) string {
	return strings.Join([]string{e.Title, e.Description, e.BodyPlainText, strings.Join(e.Tags, " ")}, " ")
}

func docID(position int) string {
	return fmt.Sprintf("%06d", position)
}

// Terms splits a query the same way the indexed text was split.
func (i *Index) Terms(q string) []string {
	var terms []string
	for _, tok := range i.analyzer.Analyze([]byte(q)) {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// Search returns entry positions matching every query term as a prefix or
// substring of some indexed word, best first.
func (i *Index) Search(q string, limit int) ([]int, error) {
	terms := i.Terms(q)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	conjuncts := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField(textField)
		if strings.ContainsAny(term, `*?\`) {
			conjuncts = append(conjuncts, prefix)
			continue
		}
		substring := bleve.NewWildcardQuery("*" + term + "*")
		substring.SetField(textField)
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(prefix, substring))
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	positions := make([]int, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= i.size {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}
