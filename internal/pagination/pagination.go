// Package pagination computes page windows and the pagination metadata
// returned with every paginated listing.
package pagination

import "math"

// Defaults applied when a request omits or overflows its paging parameters.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 50
)

// Request is a clamped page request: Page >= 1 and 1 <= Limit.
type Request struct {
	Page  int
	Limit int
}

// NewRequest clamps page and limit. max <= 0 means MaxLimit.
func NewRequest(page, limit, max int) Request {
	if max <= 0 {
		max = MaxLimit
	}
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = 1
	}
	if limit > max {
		limit = max
	}
	return Request{Page: page, Limit: limit}
}

// Skip returns the number of documents before the window. It saturates at
// math.MaxInt64 instead of overflowing for very large pages.
func (r Request) Skip() int64 {
	if r.Page < 1 || r.Limit < 1 {
		return 0
	}
	pages, limit := int64(r.Page-1), int64(r.Limit)
	if pages > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return pages * limit
}

// Meta is the pagination block of a response.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// Compute derives the metadata for a page of a result set of total
// documents. limit < 1 is treated as 1 and page < 1 as 1.
func Compute(page, limit int, total int64) Meta {
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	if total < 0 {
		total = 0
	}

	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}

	return Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    int64(page) < totalPages,
	}
}

// Result is one page of items plus its metadata.
type Result[T any] struct {
	Items      []T  `json:"items"`
	Pagination Meta `json:"pagination"`
}

// NewResult builds a Result, never returning a nil Items slice.
func NewResult[T any](items []T, meta Meta) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Pagination: meta}
}

// Map converts the items of a result, keeping the metadata.
func Map[T, R any](r Result[T], fn func(T) R) Result[R] {
	out := make([]R, len(r.Items))
	for i, item := range r.Items {
		out[i] = fn(item)
	}
	return Result[R]{Items: out, Pagination: r.Pagination}
}
