// Package splash holds the branding delay shown before the main page is
// mounted. The gate is a fixed timer, not a readiness signal: nothing it
// wraps is mounted until the timer runs out.
package splash

import (
	"sync"
	"time"
)

// Phase of a gate.
type Phase int

const (
	Presenting Phase = iota
	Dismissed
)

func (p Phase) String() string {
	if p == Dismissed {
		return "dismissed"
	}
	return "presenting"
}

// DefaultDuration is used when a Config leaves Duration unset.
const DefaultDuration = 2 * time.Second

// Config selects between the fixed gate and the route-gated gate.
type Config struct {
	Duration time.Duration
	// RouteGated presents the splash only on GatedRoute. Any other route
	// dismisses the gate immediately.
	RouteGated bool
	GatedRoute string
}

// Gate is one visitor's splash sequencer. The timer is kept as a deadline and
// evaluated on read, so there is no goroutine to leak and no late callback
// after Unmount.
type Gate struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	mounted   bool
	deadline  time.Time
	dismissed bool
	route     string
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New returns an unmounted gate.
func New(cfg Config, opts ...Option) *Gate {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.GatedRoute == "" {
		cfg.GatedRoute = "/"
	}
	g := &Gate{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the gate configuration after defaults were applied.
func (g *Gate) Config() Config {
	return g.cfg
}

// Mount starts presenting. In route-gated mode the initial route decides:
// the gated route presents, anything else is dismissed at once.
func (g *Gate) Mount(route string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mounted = true
	g.enter(route)
}

// Navigate reacts to a route change. The fixed gate ignores navigation.
func (g *Gate) Navigate(route string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.mounted || !g.cfg.RouteGated {
		return
	}
	g.enter(route)
}

func (g *Gate) enter(route string) {
	g.route = route
	if g.cfg.RouteGated && route != g.cfg.GatedRoute {
		g.dismissed = true
		g.deadline = time.Time{}
		return
	}
	g.dismissed = false
	g.deadline = g.now().Add(g.cfg.Duration)
}

// Unmount stops the gate. An unmounted gate keeps its children unmounted.
func (g *Gate) Unmount() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mounted = false
	g.dismissed = false
	g.deadline = time.Time{}
}

// Phase reports Presenting for [0, duration) after the last (re)start and
// Dismissed from duration on.
func (g *Gate) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase(g.now())
}

func (g *Gate) phase(now time.Time) Phase {
	if !g.mounted {
		return Presenting
	}
	if g.dismissed || !now.Before(g.deadline) {
		return Dismissed
	}
	return Presenting
}

// Remaining is the time left until dismissal, zero once dismissed.
func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if g.phase(now) == Dismissed || !g.mounted {
		return 0
	}
	return g.deadline.Sub(now)
}

// Route is the last route the gate saw.
func (g *Gate) Route() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.route
}

// Mounted reports whether Mount has been called without a later Unmount.
func (g *Gate) Mounted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mounted
}
