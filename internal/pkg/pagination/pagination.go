package pagination

import (
	"strconv"

	"github.com/contentforge/studio/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	DefaultPage = 1
	DefaultSize = 20
	MaxSize     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page int
	Size int
}

// Requested reports whether the caller asked for a page at all.
func Requested(c *gin.Context) bool {
	_, page := c.GetQuery("page")
	_, size := c.GetQuery("size")
	return page || size
}

// FromContext extracts and clamps pagination params from the request.
func FromContext(c *gin.Context) Query {
	page := parseIntOr(c.Query("page"), DefaultPage)
	size := parseIntOr(c.Query("size"), DefaultSize)

	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return Query{Page: page, Size: size}
}

// Slice returns the requested window of items and its metadata. A page past
// the end yields an empty, non-nil slice.
func Slice[T any](items []T, q Query) ([]T, response.Pagination) {
	total := len(items)
	totalPage := (total + q.Size - 1) / q.Size

	start := (q.Page - 1) * q.Size
	if start > total {
		start = total
	}
	end := start + q.Size
	if end > total {
		end = total
	}
	window := make([]T, end-start)
	copy(window, items[start:end])

	return window, response.Pagination{
		Total:       int64(total),
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
