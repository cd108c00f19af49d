package paging

import (
	"math"
	"strconv"
)

const (
	DefaultSize      = 10
	DefaultAdminSize = 20
	MaxSize          = 100
	// MaxPage keeps Page*MaxSize inside int.
	MaxPage = math.MaxInt / MaxSize
)

// Request is a zero-based page window.
type Request struct {
	Page int
	Size int
}

// Normalize clamps the request to sane bounds, using fallback when Size is unset.
func (r Request) Normalize(fallback int) Request {
	if r.Page < 0 {
		r.Page = 0
	}
	if r.Page > MaxPage {
		r.Page = MaxPage
	}
	if r.Size <= 0 {
		r.Size = fallback
	}
	if r.Size > MaxSize {
		r.Size = MaxSize
	}
	return r
}

// Offset returns the number of rows to skip.
func (r Request) Offset() int {
	if r.Page <= 0 || r.Size <= 0 {
		return 0
	}
	if r.Page > math.MaxInt/r.Size {
		return math.MaxInt
	}
	return r.Page * r.Size
}

// Page is one window of a larger ordered result.
type Page[T any] struct {
	Items      []T `json:"content"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total_elements"`
	TotalPages int `json:"total_pages"`
}

// New assembles a page, computing the page count from total.
func New[T any](items []T, req Request, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	return Page[T]{Items: items, Page: req.Page, Size: req.Size, Total: total, TotalPages: pages}
}

// Slice cuts the window described by req out of an already ordered slice.
func Slice[T any](all []T, req Request) Page[T] {
	start := min(req.Offset(), len(all))
	end := start
	if req.Size > 0 {
		end = min(start+req.Size, len(all))
	}
	return New(append([]T(nil), all[start:end]...), req, len(all))
}

// Map converts the items of a page, keeping its metadata.
func Map[T, U any](p Page[T], fn func(T) (U, error)) (Page[U], error) {
	out := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		u, err := fn(item)
		if err != nil {
			return Page[U]{}, err
		}
		out = append(out, u)
	}
	return Page[U]{Items: out, Page: p.Page, Size: p.Size, Total: p.Total, TotalPages: p.TotalPages}, nil
}

// FromQuery parses page and size query values, ignoring malformed input.
func FromQuery(page, size string) Request {
	p, _ := strconv.Atoi(page)
	s, _ := strconv.Atoi(size)
	return Request{Page: p, Size: s}
}
