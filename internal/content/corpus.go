package content

// Corpus is the immutable set of records produced by one build, in source
// enumeration order. It is safe for concurrent readers.
type Corpus struct {
	records []PostRecord
}

// NewCorpus takes ownership of records. Callers must not modify the slice afterwards.
func NewCorpus(records []PostRecord) *Corpus {
	return &Corpus{records: records}
}

// Records returns the records in corpus order. The slice is shared; treat it as read-only.
func (c *Corpus) Records() []PostRecord {
	if c == nil {
		return nil
	}
	return c.records[:len(c.records):len(c.records)]
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Published returns published records in corpus order.
func (c *Corpus) Published() []PostRecord {
	var out []PostRecord
	for _, r := range c.Records() {
		if r.Published {
			out = append(out, r)
		}
	}
	return out
}

// SearchEntry projects a record into its search index form.
func (p *PostRecord) SearchEntry() SearchIndexEntry {
	return SearchIndexEntry{
		Identifier:    p.Identifier,
		Title:         p.Title,
		Description:   p.Description,
		BodyPlainText: p.BodyPlainText,
		Tags:          nonNil(p.Tags),
		Categories:    nonNil(p.Categories),
		Locale:        p.Locale,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
