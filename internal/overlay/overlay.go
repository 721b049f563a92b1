// Package overlay opens one record of a section in a detail view while the
// page behind it stops scrolling.
package overlay

import (
	"errors"
	"sync"
)

// ErrLocked is returned when another owner already holds the scroll lock.
var ErrLocked = errors.New("scroll lock held by another overlay")

// ScrollPolicy is the document-level overflow setting.
type ScrollPolicy string

const (
	ScrollAuto   ScrollPolicy = "auto"
	ScrollHidden ScrollPolicy = "hidden"
)

// ScrollLock is a single-owner lock over a document's scroll policy. The
// owner that acquires it gets a release func; releasing restores whatever
// policy was in place before the acquire.
type ScrollLock struct {
	mu     sync.Mutex
	policy ScrollPolicy
	saved  ScrollPolicy
	owner  string
	lease  uint64
}

// NewScrollLock returns an unlocked document scrolling with policy.
func NewScrollLock(policy ScrollPolicy) *ScrollLock {
	if policy == "" {
		policy = ScrollAuto
	}
	return &ScrollLock{policy: policy}
}

// Acquire hides scrolling on behalf of owner. A second acquire by a different
// owner is rejected with ErrLocked; the lock count is never shared.
func (l *ScrollLock) Acquire(owner string) (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return nil, ErrLocked
	}
	l.owner = owner
	l.saved = l.policy
	l.policy = ScrollHidden
	l.lease++
	lease := l.lease

	var once sync.Once
	return func() {
		once.Do(func() { l.release(lease) })
	}, nil
}

func (l *ScrollLock) release(lease uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lease != lease || l.owner == "" {
		return
	}
	l.policy = l.saved
	l.owner = ""
}

// Policy returns the current scroll policy.
func (l *ScrollLock) Policy() ScrollPolicy {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.policy
}

// Owner returns who holds the lock, empty when free.
func (l *ScrollLock) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Overlay holds at most one selected record for a section.
type Overlay[T any] struct {
	owner string
	lock  *ScrollLock

	mu       sync.Mutex
	selected *T
	release  func()
}

// New returns a closed overlay for the named section, sharing lock with the
// other overlays of the same document.
func New[T any](owner string, lock *ScrollLock) *Overlay[T] {
	return &Overlay[T]{owner: owner, lock: lock}
}

// Open selects rec. Opening while already open replaces the selection and
// keeps the existing scroll lease.
func (o *Overlay[T]) Open(rec T) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.release == nil {
		release, err := o.lock.Acquire(o.owner)
		if err != nil {
			return err
		}
		o.release = release
	}
	o.selected = &rec
	return nil
}

// Close clears the selection and gives back the scroll lock. Every close
// path (button, backdrop, teardown) lands here; calling it twice is harmless.
func (o *Overlay[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = nil
	if o.release != nil {
		o.release()
		o.release = nil
	}
}

// Selected returns the open record.
func (o *Overlay[T]) Selected() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected == nil {
		var zero T
		return zero, false
	}
	return *o.selected, true
}
