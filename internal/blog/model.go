// Package blog manages clinic articles: drafts written in the admin area,
// their attached images, and the published list shown on the public site.
package blog

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dentacare/clinic-portal/internal/catalog"
)

const (
	// MaxImages caps the images attached to one post.
	MaxImages = 10

	DefaultAuthor   = "Dr. Aisha Patel"
	DefaultCategory = "Oral Health"

	excerptRunes   = 160
	wordsPerMinute = 200
)

var (
	ErrNotFound        = errors.New("blog post not found")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidCategory = errors.New("unknown blog category")
	ErrTooManyImages   = fmt.Errorf("at most %d images per post", MaxImages)
)

// Post is a blog article. Images keeps upload order.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	ReadTime  string    `json:"read_time"`
	Published bool      `json:"published"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at"`
}

// summarize fills the derived listing fields from the content.
func (p *Post) summarize() {
	if p.Images == nil {
		p.Images = []string{}
	}
	p.Excerpt = excerpt(p.Content)
	minutes := (len(strings.Fields(p.Content)) + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	p.ReadTime = fmt.Sprintf("%d min read", minutes)
}

func excerpt(content string) string {
	text := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)[:excerptRunes]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > excerptRunes/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

// Draft is a new post before it is stored.
type Draft struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Author   string `json:"author"`
	Content  string `json:"content"`
}

// Validate trims the draft and fills the default author and category. Only
// the title is mandatory.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Category = strings.TrimSpace(d.Category)
	d.Author = strings.TrimSpace(d.Author)
	d.Content = strings.TrimSpace(d.Content)

	if d.Title == "" {
		return ErrTitleRequired
	}
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	if !catalog.IsBlogCategory(d.Category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
	}
	if d.Author == "" {
		d.Author = DefaultAuthor
	}
	return nil
}
