// Package loader fetches the records of one content section and masks
// upstream failures behind a bundled fallback dataset.
//
// A Loader never reports an error to its view. A fetch that fails or
// returns nothing is replaced by the fallback records, and the view only
// ever sees Loading, Ready or Empty.
package loader

import (
	"context"
	"log"
	"sync"

	"go.uber.org/atomic"
)

// State is the tri-state a section view renders from.
type State int

const (
	Loading State = iota
	Ready
	Empty
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// Provenance tells where the records of a Batch came from.
type Provenance int

const (
	None Provenance = iota
	Remote
	Fallback
)

func (p Provenance) String() string {
	switch p {
	case Remote:
		return "remote"
	case Fallback:
		return "fallback"
	default:
		return "none"
	}
}

// Batch is an ordered set of records from a single provenance. Remote and
// fallback records are never mixed.
type Batch[T any] struct {
	Records    []T
	Provenance Provenance
}

// Snapshot is what a view reads after or during a load.
type Snapshot[T any] struct {
	State State
	Batch Batch[T]
	Limit int
}

// FetchFunc retrieves up to limit records ordered by recency, or all records
// when limit <= 0.
type FetchFunc[T any] func(ctx context.Context, limit int) ([]T, error)

// Counters tally fetch outcomes. One set is usually shared by every loader
// of the same section so the totals survive individual sessions.
type Counters struct {
	Fetches   atomic.Int64
	Failures  atomic.Int64
	Fallbacks atomic.Int64
}

// CounterStats is a point-in-time copy of Counters.
type CounterStats struct {
	Fetches   int64 `json:"fetches"`
	Failures  int64 `json:"failures"`
	Fallbacks int64 `json:"fallbacks"`
}

// Stats copies the current totals.
func (c *Counters) Stats() CounterStats {
	return CounterStats{
		Fetches:   c.Fetches.Load(),
		Failures:  c.Failures.Load(),
		Fallbacks: c.Fallbacks.Load(),
	}
}

// Loader owns the LoadState and Batch of one content section.
//
// Invocations are not allowed to interleave: Load, Reload and Start are
// ignored while a fetch is in flight. Unmount discards whatever an in-flight
// fetch returns afterwards.
type Loader[T any] struct {
	name     string
	fetch    FetchFunc[T]
	fallback []T
	counters *Counters

	mu       sync.Mutex
	state    State
	batch    Batch[T]
	limit    int
	inFlight bool
	mounted  bool
	epoch    uint64
	cancel   context.CancelFunc

	running sync.WaitGroup
}

// Option customizes a Loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	counters *Counters
}

// WithCounters records fetch outcomes in c.
func WithCounters(c *Counters) Option {
	return func(o *loaderOptions) { o.counters = c }
}

// New returns a mounted loader in the Loading state. Nothing is fetched
// until Load or Start is called.
func New[T any](name string, fetch FetchFunc[T], fallback []T, limit int, opts ...Option) *Loader[T] {
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.counters == nil {
		o.counters = &Counters{}
	}
	return &Loader[T]{
		name:     name,
		fetch:    fetch,
		fallback: fallback,
		counters: o.counters,
		limit:    limit,
		state:    Loading,
		mounted:  true,
	}
}

// Name returns the section name used in log lines.
func (l *Loader[T]) Name() string {
	return l.name
}

// Load runs one fetch with the current limit. It reports false when the call
// was ignored because a fetch is already in flight or the loader has been
// unmounted.
func (l *Loader[T]) Load(ctx context.Context) bool {
	return l.Reload(ctx, l.currentLimit())
}

// Reload re-runs the full sequence from Loading with a new limit and blocks
// until the fetch returns. The limit is only adopted when the call is not
// ignored.
func (l *Loader[T]) Reload(ctx context.Context, limit int) bool {
	fetchCtx, epoch, ok := l.begin(ctx, limit)
	if !ok {
		return false
	}
	l.run(fetchCtx, epoch, limit)
	return true
}

// Start is Reload without waiting: the loader is Loading when Start returns
// and the fetch completes in the background. limit < 0 keeps the current
// limit.
func (l *Loader[T]) Start(ctx context.Context, limit int) bool {
	if limit < 0 {
		limit = l.currentLimit()
	}
	fetchCtx, epoch, ok := l.begin(ctx, limit)
	if !ok {
		return false
	}
	l.running.Add(1)
	go func() {
		defer l.running.Done()
		l.run(fetchCtx, epoch, limit)
	}()
	return true
}

// Wait blocks until every fetch started with Start has returned.
func (l *Loader[T]) Wait() {
	l.running.Wait()
}

func (l *Loader[T]) currentLimit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func (l *Loader[T]) begin(ctx context.Context, limit int) (context.Context, uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.mounted || l.inFlight {
		return nil, 0, false
	}
	l.inFlight = true
	l.limit = limit
	l.state = Loading
	l.epoch++
	fetchCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	return fetchCtx, l.epoch, true
}

func (l *Loader[T]) run(ctx context.Context, epoch uint64, limit int) {
	l.counters.Fetches.Inc()
	records, err := l.fetch(ctx, limit)

	l.mu.Lock()
	defer l.mu.Unlock()
	if epoch != l.epoch || !l.mounted {
		// Owner went away while the fetch was pending.
		return
	}
	l.inFlight = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}

	switch {
	case err != nil:
		log.Printf("Error loading %s, using fallback: %v", l.name, err)
		l.counters.Failures.Inc()
		l.useFallback()
	case len(records) == 0:
		l.useFallback()
	default:
		l.batch = Batch[T]{Records: records, Provenance: Remote}
		l.state = Ready
	}
}

func (l *Loader[T]) useFallback() {
	l.counters.Fallbacks.Inc()
	l.batch = Batch[T]{Records: l.fallback, Provenance: Fallback}
	if len(l.fallback) == 0 {
		l.state = Empty
		return
	}
	l.state = Ready
}

// Snapshot returns the current state, batch and limit.
func (l *Loader[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot[T]{State: l.state, Batch: l.batch, Limit: l.limit}
}

// InFlight reports whether a fetch is pending.
func (l *Loader[T]) InFlight() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Unmount tears the loader down. A pending fetch is cancelled and its
// result, whenever it arrives, is dropped.
func (l *Loader[T]) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.mounted {
		return
	}
	l.mounted = false
	l.inFlight = false
	l.epoch++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}
