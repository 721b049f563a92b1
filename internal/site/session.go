package site

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/oklog/ulid/v2"
	"go.uber.org/atomic"

	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/overlay"
	"github.com/Zachkp/folio/internal/splash"
)

// Sections is the content subtree behind the splash gate. It only exists
// while the gate is dismissed.
type Sections struct {
	Blog     *Section[content.Post]
	Projects *Section[content.Project]
	Skills   *Section[content.Skill]
}

// load starts every section's fetch. Each section settles on its own, so a
// slow or hung fetch only keeps its own section Loading.
func (s *Sections) load(ctx context.Context) {
	s.Blog.Load(ctx)
	s.Projects.Load(ctx)
	s.Skills.Load(ctx)
}

// wait blocks until every started fetch has returned.
func (s *Sections) wait() {
	s.Blog.Wait()
	s.Projects.Wait()
	s.Skills.Wait()
}

func (s *Sections) unmount() {
	s.Blog.Unmount()
	s.Projects.Unmount()
	s.Skills.Unmount()
}

// Session is one visitor's document: a splash gate, the scroll lock shared
// by the overlays, and the sections once the gate lets them mount.
type Session struct {
	ID     string
	Gate   *splash.Gate
	Scroll *overlay.ScrollLock

	build func(lock *overlay.ScrollLock) *Sections

	mu       sync.Mutex
	sections *Sections
	closed   bool
}

// Navigate forwards a page navigation to the gate. When the gate starts
// presenting again the sections are torn down.
func (s *Session) Navigate(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gate.Navigate(route)
	if s.Gate.Phase() == splash.Presenting {
		s.unmountSections()
	}
}

// Sections mounts the content subtree if the gate is dismissed and returns
// it. The first call after mounting starts every section's fetch and returns
// without waiting for them.
func (s *Session) Sections(ctx context.Context) (*Sections, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false
	}
	if s.Gate.Phase() != splash.Dismissed {
		s.unmountSections()
		s.mu.Unlock()
		return nil, false
	}
	secs, fresh := s.sections, false
	if secs == nil {
		secs, fresh = s.build(s.Scroll), true
		s.sections = secs
	}
	s.mu.Unlock()

	if fresh {
		// Loads outlive the request that triggered them; Unmount cancels.
		secs.load(context.WithoutCancel(ctx))
	}
	return secs, true
}

// Mounted returns the sections without mounting them.
func (s *Session) Mounted() (*Sections, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sections, s.sections != nil
}

func (s *Session) unmountSections() {
	if s.sections == nil {
		return
	}
	s.sections.unmount()
	s.sections = nil
}

// Unmount tears the whole session down. Late fetch results are dropped.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.unmountSections()
	s.Gate.Unmount()
}

// SessionStore keeps visitor sessions in an LRU with a TTL. Eviction
// unmounts the session.
type SessionStore struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *Session]
	create  func(id, route string) *Session
	created atomic.Int64
	evicted atomic.Int64
}

// NewSessionStore returns a store holding up to capacity sessions for ttl
// after their last use.
func NewSessionStore(capacity int, ttl time.Duration, create func(id, route string) *Session) *SessionStore {
	st := &SessionStore{create: create}
	st.cache = expirable.NewLRU[string, *Session](capacity, func(_ string, s *Session) {
		st.evicted.Inc()
		s.Unmount()
	}, ttl)
	return st
}

// Resolve returns the session for id, creating and mounting a new one on
// route when id is unknown. The boolean reports whether it was created.
func (st *SessionStore) Resolve(id, route string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id != "" {
		if s, ok := st.cache.Get(id); ok {
			// Refresh the TTL.
			st.cache.Add(id, s)
			return s, false
		}
	}
	s := st.create(ulid.Make().String(), route)
	st.cache.Add(s.ID, s)
	st.created.Inc()
	return s, true
}

// Lookup returns an existing session and refreshes its TTL.
func (st *SessionStore) Lookup(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.cache.Get(id)
	if ok {
		st.cache.Add(id, s)
	}
	return s, ok
}

// Remove evicts a session.
func (st *SessionStore) Remove(id string) {
	st.cache.Remove(id)
}

// SessionStats are the in-memory counters shown on the admin dashboard.
type SessionStats struct {
	Active  int   `json:"active"`
	Created int64 `json:"created"`
	Evicted int64 `json:"evicted"`
}

// Stats reports session counters.
func (st *SessionStore) Stats() SessionStats {
	return SessionStats{
		Active:  st.cache.Len(),
		Created: st.created.Load(),
		Evicted: st.evicted.Load(),
	}
}
