package store

import (
	"context"
	"fmt"

	"github.com/Zachkp/folio/internal/content"
)

// SeedResult counts the rows written by Seed.
type SeedResult struct {
	Posts    int
	Projects int
	Skills   int
}

// Seed copies ds into every table that is still empty. Tables that already
// hold rows are left alone.
func (s *Store) Seed(ctx context.Context, ds content.Dataset) (SeedResult, error) {
	var res SeedResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	empty := func(table string) (bool, error) {
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return false, fmt.Errorf("count %s: %w", table, err)
		}
		return n == 0, nil
	}

	if ok, err := empty("posts"); err != nil {
		return res, err
	} else if ok {
		for _, p := range ds.Posts {
			if p.Slug == "" {
				p.Slug = content.Slug(p.Title)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.Title, p.Content, p.Summary, p.Slug, p.Author, encodeList(p.Tags),
				p.FeaturedImage, p.ReadingTime, millis(p.CreatedAt)); err != nil {
				return res, fmt.Errorf("seed post %s: %w", p.ID, err)
			}
			res.Posts++
		}
	}

	if ok, err := empty("projects"); err != nil {
		return res, err
	} else if ok {
		for _, p := range ds.Projects {
			if _, err := tx.ExecContext(ctx, `INSERT INTO projects (id, title, description, image, demo_url, github_url, technologies, featured, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.Title, p.Description, p.Image, p.DemoURL, p.GithubURL,
				encodeList(p.Technologies), p.Featured, millis(p.CreatedAt)); err != nil {
				return res, fmt.Errorf("seed project %s: %w", p.ID, err)
			}
			res.Projects++
		}
	}

	if ok, err := empty("skills"); err != nil {
		return res, err
	} else if ok {
		for _, sk := range ds.Skills {
			if _, err := tx.ExecContext(ctx, `INSERT INTO skills (id, name, level, category, icon) VALUES (?, ?, ?, ?, ?)`,
				sk.ID, sk.Name, sk.Level, sk.Category, sk.Icon); err != nil {
				return res, fmt.Errorf("seed skill %s: %w", sk.ID, err)
			}
			res.Skills++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit seed: %w", err)
	}
	return res, nil
}
