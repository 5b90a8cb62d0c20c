// Package models defines the server-side data models persisted in the
// database and serialized by the HTTP API.
package models

import (
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophblog/internal/common"
)

// Column widths of the posts table, in characters.
const (
	MaxTitleLen    = 120
	MaxDateLen     = 50
	MaxCategoryLen = 50
	MaxImageLen    = 200
)

// Post is a blog entry. Date is free-form display text, not a parsed time.
// Image is nil when the post has no picture.
type Post struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Date     string  `json:"date"`
	Category string  `json:"category"`
	Excerpt  string  `json:"excerpt"`
	Image    *string `json:"image"`
	Tags     Tags    `json:"tags"`
}

// Normalize trims surrounding whitespace and drops blank tags.
func (p *Post) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Date = strings.TrimSpace(p.Date)
	p.Category = strings.TrimSpace(p.Category)
	p.Excerpt = strings.TrimSpace(p.Excerpt)
	if p.Image != nil {
		img := strings.TrimSpace(*p.Image)
		if img == "" {
			p.Image = nil
		} else {
			p.Image = &img
		}
	}
	p.Tags = p.Tags.Clean()
}

// Validate checks the creation invariants: title, date, category and excerpt
// are required, and length limits hold.
func (p *Post) Validate() error {
	var missing []string
	if p.Title == "" {
		missing = append(missing, "title")
	}
	if p.Date == "" {
		missing = append(missing, "date")
	}
	if p.Category == "" {
		missing = append(missing, "category")
	}
	if p.Excerpt == "" {
		missing = append(missing, "excerpt")
	}
	if len(missing) > 0 {
		return common.NewValidationError("Missing required fields: %s", strings.Join(missing, ", "))
	}
	return checkLimits(p.Title, p.Date, p.Category, p.Image)
}

// PostPatch is a partial update. Nil fields are left untouched; an empty
// Image clears the picture.
type PostPatch struct {
	Title    *string   `json:"title"`
	Date     *string   `json:"date"`
	Category *string   `json:"category"`
	Excerpt  *string   `json:"excerpt"`
	Image    *string   `json:"image"`
	Tags     *[]string `json:"tags"`
}

func (p *PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Date == nil && p.Category == nil &&
		p.Excerpt == nil && p.Image == nil && p.Tags == nil
}

// Validate rejects blank values for required fields and enforces limits.
func (p *PostPatch) Validate() error {
	required := []struct {
		name string
		v    *string
	}{
		{"title", p.Title},
		{"date", p.Date},
		{"category", p.Category},
		{"excerpt", p.Excerpt},
	}
	var blank []string
	for _, f := range required {
		if f.v != nil && strings.TrimSpace(*f.v) == "" {
			blank = append(blank, f.name)
		}
	}
	if len(blank) > 0 {
		return common.NewValidationError("Fields cannot be empty: %s", strings.Join(blank, ", "))
	}

	var title, date, category string
	if p.Title != nil {
		title = strings.TrimSpace(*p.Title)
	}
	if p.Date != nil {
		date = strings.TrimSpace(*p.Date)
	}
	if p.Category != nil {
		category = strings.TrimSpace(*p.Category)
	}
	return checkLimits(title, date, category, p.Image)
}

// Apply copies the set fields onto post.
func (p *PostPatch) Apply(post *Post) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Date != nil {
		post.Date = *p.Date
	}
	if p.Category != nil {
		post.Category = *p.Category
	}
	if p.Excerpt != nil {
		post.Excerpt = *p.Excerpt
	}
	if p.Image != nil {
		img := *p.Image
		post.Image = &img
	}
	if p.Tags != nil {
		post.Tags = Tags(*p.Tags)
	}
	post.Normalize()
}

type fieldLimit struct {
	name  string
	value string
	max   int
}

func checkLimits(title, date, category string, image *string) error {
	limits := []fieldLimit{
		{"title", title, MaxTitleLen},
		{"date", date, MaxDateLen},
		{"category", category, MaxCategoryLen},
	}
	if image != nil {
		limits = append(limits, fieldLimit{"image", strings.TrimSpace(*image), MaxImageLen})
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return common.NewValidationError("Field %s must be at most %d characters", l.name, l.max)
		}
	}
	return nil
}
