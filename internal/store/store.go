// Package store is the content database: a hosted Turso database when one is
// configured and reachable, a local SQLite file otherwise.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // SQLite driver

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the content database.
type Store struct {
	db       *sql.DB
	useTurso bool
	now      func() time.Time
}

// Open connects to Turso when credentials are set and the database answers a
// ping, and falls back to the SQLite file at cfg.SQLitePath otherwise.
func Open(ctx context.Context, cfg config.Database) (*Store, error) {
	if cfg.TursoURL != "" && cfg.TursoToken != "" {
		conn, err := sql.Open("libsql", cfg.TursoURL+"?authToken="+cfg.TursoToken)
		if err != nil {
			log.Printf("Error opening Turso connection: %v", err)
		} else if err := conn.PingContext(ctx); err != nil {
			log.Printf("Turso unreachable, falling back to SQLite: %v", err)
			conn.Close()
		} else {
			return &Store{db: conn, useTurso: true, now: time.Now}, nil
		}
	}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite database ping: %w", err)
	}
	return &Store{db: conn, now: time.Now}, nil
}

// New wraps an existing connection.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db)
}

// ConnectionInfo describes the backing database.
func (s *Store) ConnectionInfo() string {
	if s.useTurso {
		return "Turso"
	}
	return "SQLite"
}

func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func encodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func decodeList(raw string) []string {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

const postColumns = `id, title, content, summary, slug, author, tags, featured_image, reading_time, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (content.Post, error) {
	var (
		p       content.Post
		tags    string
		created int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Summary, &p.Slug, &p.Author,
		&tags, &p.FeaturedImage, &p.ReadingTime, &created); err != nil {
		return content.Post{}, err
	}
	p.Tags = decodeList(tags)
	p.CreatedAt = fromMillis(created)
	return p, nil
}

func collectPosts(rows *sql.Rows) ([]content.Post, error) {
	defer rows.Close()
	var posts []content.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Posts returns up to limit posts, newest first. limit <= 0 returns all.
func (s *Store) Posts(ctx context.Context, limit int) ([]content.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	return collectPosts(rows)
}

// PostBySlug returns the post with slug.
func (s *Store) PostBySlug(ctx context.Context, slug string) (content.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Post{}, ErrNotFound
	}
	if err != nil {
		return content.Post{}, fmt.Errorf("query post %s: %w", slug, err)
	}
	return p, nil
}

// SearchPosts matches q against title, content and summary, newest first.
func (s *Store) SearchPosts(ctx context.Context, q string) ([]content.Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	pattern := "%" + strings.ToLower(q) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts
		WHERE lower(title) LIKE ? OR lower(content) LIKE ? OR lower(summary) LIKE ?
		ORDER BY created_at DESC`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return collectPosts(rows)
}

// CreatePost stores p with a fresh id and creation time. Slug and reading time
// are derived when missing.
func (s *Store) CreatePost(ctx context.Context, p content.Post) (content.Post, error) {
	p.ID = ulid.Make().String()
	p.CreatedAt = s.now().UTC()
	if p.Slug == "" {
		p.Slug = content.Slug(p.Title)
	}
	if p.ReadingTime == 0 {
		p.ReadingTime = content.ReadingTime(p.Content)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Content, p.Summary, p.Slug, p.Author, encodeList(p.Tags),
		p.FeaturedImage, p.ReadingTime, millis(p.CreatedAt))
	if err != nil {
		return content.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return p, nil
}

// Projects returns projects newest first, optionally only (non-)featured ones.
func (s *Store) Projects(ctx context.Context, featured *bool) ([]content.Project, error) {
	query := `SELECT id, title, description, image, demo_url, github_url, technologies, featured, created_at FROM projects`
	args := []any{}
	if featured != nil {
		query += ` WHERE featured = ?`
		args = append(args, *featured)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []content.Project
	for rows.Next() {
		var (
			p       content.Project
			techs   string
			created int64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Image, &p.DemoURL, &p.GithubURL,
			&techs, &p.Featured, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Technologies = decodeList(techs)
		p.CreatedAt = fromMillis(created)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Skills returns skills ordered by level, highest first.
func (s *Store) Skills(ctx context.Context) ([]content.Skill, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, level, category, icon FROM skills ORDER BY level DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	defer rows.Close()

	var skills []content.Skill
	for rows.Next() {
		var sk content.Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Level, &sk.Category, &sk.Icon); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		skills = append(skills, sk)
	}
	return skills, rows.Err()
}

// SubmitContact stores a contact form submission.
func (s *Store) SubmitContact(ctx context.Context, sub content.ContactSubmission) (content.ContactSubmission, error) {
	sub.ID = ulid.Make().String()
	sub.SubmittedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO contact_submissions (id, name, email, subject, message, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.Email, sub.Subject, sub.Message, millis(sub.SubmittedAt))
	if err != nil {
		return content.ContactSubmission{}, fmt.Errorf("insert contact submission: %w", err)
	}
	return sub, nil
}

// Subscribe adds email to the newsletter list. Subscribing twice is not an
// error.
func (s *Store) Subscribe(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO newsletter_subscribers (email, subscribed_at) VALUES (?, ?)`,
		strings.ToLower(strings.TrimSpace(email)), millis(s.now()))
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

// RecordPageView stores one page view. The visitor is identified by a
// salted hash only.
func (s *Store) RecordPageView(ctx context.Context, page, hashedIP, userAgent string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO page_views (page, hashed_ip, user_agent, viewed_at) VALUES (?, ?, ?, ?)`,
		page, hashedIP, userAgent, millis(s.now()))
	if err != nil {
		return fmt.Errorf("insert page view: %w", err)
	}
	return nil
}

// PrunePageViews deletes page views older than cutoff.
func (s *Store) PrunePageViews(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_views WHERE viewed_at < ?`, millis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune page views: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats summarizes the site for the admin dashboard.
type Stats struct {
	Posts             int64                       `json:"posts"`
	Projects          int64                       `json:"projects"`
	Skills            int64                       `json:"skills"`
	PageViews         int64                       `json:"page_views"`
	UniqueVisitors    int64                       `json:"unique_visitors"`
	PageViewsToday    int64                       `json:"page_views_today"`
	Subscribers       int64                       `json:"subscribers"`
	ContactCount      int64                       `json:"contact_count"`
	RecentSubmissions []content.ContactSubmission `json:"recent_submissions"`
}

// Stats collects dashboard counters and the latest contact submissions.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	counters := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&st.Posts, `SELECT COUNT(*) FROM posts`, nil},
		{&st.Projects, `SELECT COUNT(*) FROM projects`, nil},
		{&st.Skills, `SELECT COUNT(*) FROM skills`, nil},
		{&st.PageViews, `SELECT COUNT(*) FROM page_views`, nil},
		{&st.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM page_views`, nil},
		{&st.PageViewsToday, `SELECT COUNT(*) FROM page_views WHERE viewed_at >= ?`, []any{millis(startOfDay)}},
		{&st.Subscribers, `SELECT COUNT(*) FROM newsletter_subscribers`, nil},
		{&st.ContactCount, `SELECT COUNT(*) FROM contact_submissions`, nil},
	}
	for _, c := range counters {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, subject, message, submitted_at
		FROM contact_submissions ORDER BY submitted_at DESC LIMIT 20`)
	if err != nil {
		return Stats{}, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			sub     content.ContactSubmission
			created int64
		)
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.Subject, &sub.Message, &created); err != nil {
			continue
		}
		sub.SubmittedAt = fromMillis(created)
		st.RecentSubmissions = append(st.RecentSubmissions, sub)
	}
	return st, rows.Err()
}
