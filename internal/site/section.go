package site

import (
	"context"
	"errors"

	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/loader"
	"github.com/Zachkp/folio/internal/overlay"
)

// ErrUnknownRecord is returned when an overlay is opened for a record the
// section is not showing.
var ErrUnknownRecord = errors.New("record not in section")

// Section binds a loader and a detail overlay for one kind of record.
type Section[T any] struct {
	name    string
	loader  *loader.Loader[T]
	overlay *overlay.Overlay[T]
	idOf    func(T) string
}

func newSection[T any](name string, fetch loader.FetchFunc[T], fallback []T, limit int,
	lock *overlay.ScrollLock, counters *loader.Counters, idOf func(T) string) *Section[T] {
	return &Section[T]{
		name:    name,
		loader:  loader.New(name, fetch, fallback, limit, loader.WithCounters(counters)),
		overlay: overlay.New[T](name, lock),
		idOf:    idOf,
	}
}

// Load starts the section's fetch with its current page size and returns
// once the section is Loading. The view polls until it settles.
func (s *Section[T]) Load(ctx context.Context) bool {
	return s.loader.Start(ctx, -1)
}

// Reload starts a fetch with a new page size, limit 0 meaning all records.
// It is ignored while a fetch is in flight.
func (s *Section[T]) Reload(ctx context.Context, limit int) bool {
	if limit < 0 {
		limit = 0
	}
	return s.loader.Start(ctx, limit)
}

// Wait blocks until the section's background fetches have returned.
func (s *Section[T]) Wait() {
	s.loader.Wait()
}

// Open shows the record with id in the overlay.
func (s *Section[T]) Open(id string) error {
	for _, rec := range s.loader.Snapshot().Batch.Records {
		if s.idOf(rec) == id {
			return s.overlay.Open(rec)
		}
	}
	return ErrUnknownRecord
}

// Close hides the overlay.
func (s *Section[T]) Close() {
	s.overlay.Close()
}

// Unmount closes the overlay and drops any pending fetch.
func (s *Section[T]) Unmount() {
	s.overlay.Close()
	s.loader.Unmount()
}

// View is what a section template renders: load state, batch and selection.
type View[T any] struct {
	Name         string
	State        loader.State
	Provenance   loader.Provenance
	Records      []T
	Limit        int
	Selected     T
	HasSelection bool
}

// View captures the section's current state.
func (s *Section[T]) View() View[T] {
	snap := s.loader.Snapshot()
	v := View[T]{
		Name:       s.name,
		State:      snap.State,
		Provenance: snap.Batch.Provenance,
		Records:    snap.Batch.Records,
		Limit:      snap.Limit,
	}
	v.Selected, v.HasSelection = s.overlay.Selected()
	return v
}

func (v View[T]) Loading() bool      { return v.State == loader.Loading }
func (v View[T]) Empty() bool        { return v.State == loader.Empty }
func (v View[T]) FromFallback() bool { return v.Provenance == loader.Fallback }

// BlogView adds the featured-post layout and "show all" state.
type BlogView struct {
	View[content.Post]
	PageSize int
}

// Featured is the newest post, shown large.
func (v BlogView) Featured() *content.Post {
	if len(v.Records) == 0 {
		return nil
	}
	return &v.Records[0]
}

// Rest is every post after the featured one.
func (v BlogView) Rest() []content.Post {
	if len(v.Records) < 2 {
		return nil
	}
	return v.Records[1:]
}

// Expanded reports whether the section already shows every post.
func (v BlogView) Expanded() bool {
	return v.Limit <= 0
}

// ProjectsView filters projects to all or featured ones.
type ProjectsView struct {
	View[content.Project]
	Filter  string
	Visible []content.Project
}

func newProjectsView(v View[content.Project], filter string) ProjectsView {
	pv := ProjectsView{View: v, Filter: "all"}
	if filter != "featured" {
		pv.Visible = v.Records
		return pv
	}
	pv.Filter = filter
	for _, p := range v.Records {
		if p.Featured {
			pv.Visible = append(pv.Visible, p)
		}
	}
	return pv
}

// CategoryTab is one skills filter button.
type CategoryTab struct {
	Key    string
	Label  string
	Count  int
	Active bool
}

// SkillsView filters skills by category.
type SkillsView struct {
	View[content.Skill]
	Category string
	Tabs     []CategoryTab
	Visible  []content.Skill
}

func newSkillsView(v View[content.Skill], category string) SkillsView {
	valid := category == "all"
	for _, c := range content.Categories {
		if c == category {
			valid = true
		}
	}
	if !valid {
		category = "all"
	}

	sv := SkillsView{View: v, Category: category}
	counts := make(map[string]int, len(content.Categories))
	for _, sk := range v.Records {
		counts[sk.Category]++
		if category == "all" || sk.Category == category {
			sv.Visible = append(sv.Visible, sk)
		}
	}
	sv.Tabs = append(sv.Tabs, CategoryTab{Key: "all", Label: content.CategoryLabel("all"), Count: len(v.Records), Active: category == "all"})
	for _, c := range content.Categories {
		sv.Tabs = append(sv.Tabs, CategoryTab{Key: c, Label: content.CategoryLabel(c), Count: counts[c], Active: category == c})
	}
	return sv
}
