package query

import "github.com/renderinc/blogpipe/internal/content"

// Page is one slice of a listing.
type Page struct {
	Records    []content.PostRecord `json:"-"`
	Number     int                  `json:"page"`
	TotalPages int                  `json:"totalPages"`
	Total      int                  `json:"total"`
}

// Paginate returns page number page (1-based) of records. Pages below 1 are
// treated as 1; pages past the end are empty.
func Paginate(records []content.PostRecord, page, perPage int) Page {
	if perPage < 1 {
		perPage = PostsPerPage
	}
	if page < 1 {
		page = 1
	}

	total := len(records)
	p := Page{
		Records:    []content.PostRecord{},
		Number:     page,
		TotalPages: (total + perPage - 1) / perPage,
		Total:      total,
	}

	if page-1 > total/perPage {
		return p
	}
	start := (page - 1) * perPage
	if start >= total {
		return p
	}
	end := min(start+perPage, total)
	p.Records = records[start:end]
	return p
}
