// Package content defines the records shown by the portfolio sections and
// the helpers used to present them.
package content

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Post is a blog article.
type Post struct {
	ID            string    `json:"id" toml:"id"`
	Title         string    `json:"title" toml:"title"`
	Content       string    `json:"content" toml:"content"`
	Summary       string    `json:"summary" toml:"summary"`
	CreatedAt     time.Time `json:"created_at" toml:"created_at"`
	Slug          string    `json:"slug" toml:"slug"`
	Author        string    `json:"author,omitempty" toml:"author"`
	Tags          []string  `json:"tags,omitempty" toml:"tags"`
	FeaturedImage string    `json:"featured_image,omitempty" toml:"featured_image"`
	ReadingTime   int       `json:"reading_time,omitempty" toml:"reading_time"`
}

// Minutes returns the stored reading time, or computes it from the body.
func (p Post) Minutes() int {
	if p.ReadingTime > 0 {
		return p.ReadingTime
	}
	return ReadingTime(p.Content)
}

// Project is a portfolio entry.
type Project struct {
	ID           string    `json:"id" toml:"id"`
	Title        string    `json:"title" toml:"title"`
	Description  string    `json:"description" toml:"description"`
	Image        string    `json:"image" toml:"image"`
	DemoURL      string    `json:"demo_url,omitempty" toml:"demo_url"`
	GithubURL    string    `json:"github_url,omitempty" toml:"github_url"`
	Technologies []string  `json:"technologies" toml:"technologies"`
	Featured     bool      `json:"featured" toml:"featured"`
	CreatedAt    time.Time `json:"created_at" toml:"created_at"`
}

// Skill categories.
const (
	CategoryFrontend = "frontend"
	CategoryBackend  = "backend"
	CategoryTools    = "tools"
	CategoryOther    = "other"
)

// Categories lists skill categories in display order.
var Categories = []string{CategoryFrontend, CategoryBackend, CategoryTools, CategoryOther}

// Skill is one entry of the skills section. Level is 0-100.
type Skill struct {
	ID       string `json:"id" toml:"id"`
	Name     string `json:"name" toml:"name"`
	Level    int    `json:"level" toml:"level"`
	Category string `json:"category" toml:"category"`
	Icon     string `json:"icon,omitempty" toml:"icon"`
}

// ContactSubmission is a message left through the contact form.
type ContactSubmission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Subject     string    `json:"subject"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
}

const wordsPerMinute = 200

// ReadingTime estimates minutes to read text at 200 words per minute.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9 -]`)
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slug turns a title into a URL path segment.
func Slug(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, title)
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)
	s = slugInvalid.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate renders t as a long Indonesian date, e.g. "15 Januari 2024".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

// CategoryLabel returns the display label for a skill category.
func CategoryLabel(category string) string {
	switch category {
	case "", "all":
		return "Semua"
	case CategoryOther:
		return "Lainnya"
	}
	// Casers are stateful, so one per call.
	return cases.Title(language.Indonesian).String(category)
}

// SplitTags parses a comma separated tag list, dropping blanks.
func SplitTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
