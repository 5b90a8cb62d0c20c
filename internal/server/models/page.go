package models

import (
	"fmt"
	"strings"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// ListParams describes a post listing request. Page is 1-based; a Page below
// 1 is out of range and selects nothing. Paged is false for the legacy
// "everything" listing.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Paged   bool
}

// Offset is the number of rows to skip. Only meaningful when InRange.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p ListParams) InRange() bool {
	return p.Page >= 1 && p.PerPage >= 1
}

// CacheKey identifies the listing in the cache. Search is matched
// case-insensitively, so it is folded here too.
func (p ListParams) CacheKey(prefix string) string {
	if !p.Paged {
		return prefix + "all"
	}
	return fmt.Sprintf("%spage=%d:per_page=%d:search=%s",
		prefix, p.Page, p.PerPage, strings.ToLower(p.Search))
}

// PostPage is a listing result.
type PostPage struct {
	Posts       []Post `json:"posts"`
	TotalPosts  int    `json:"total_posts"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	PerPage     int    `json:"per_page"`
}

// TotalPages is ceil(total/perPage), zero when perPage is not positive.
func TotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
