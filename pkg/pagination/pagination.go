package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultPageSize matches the storefront's order list page.
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Normalize clamps p into the accepted range.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// FromRequest reads "page" and "limit" query parameters. Malformed or
// out-of-range values fall back to defaults.
func FromRequest(r *http.Request) Params {
	p := Params{Page: 1, PageSize: DefaultPageSize}

	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.PageSize = v
	}
	return p.Normalize()
}

// Info describes where a page sits in the full result set.
type Info struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	NextPage    *int `json:"nextPage"`
	PrevPage    *int `json:"prevPage"`
}

// NewInfo computes page navigation for totalCount rows.
func NewInfo(totalCount int, p Params) Info {
	p = p.Normalize()

	totalPages := totalCount / p.PageSize
	if totalCount%p.PageSize > 0 {
		totalPages++
	}

	info := Info{
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
	}
	if p.Page < totalPages {
		next := p.Page + 1
		info.NextPage = &next
	}
	if p.Page > 1 {
		prev := p.Page - 1
		info.PrevPage = &prev
	}
	return info
}
