// Package site is the application shell: the gin engine, per-visitor
// sessions with their splash gate and content sections, and the admin area.
package site

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/loader"
	"github.com/Zachkp/folio/internal/notify"
	"github.com/Zachkp/folio/internal/overlay"
	"github.com/Zachkp/folio/internal/splash"
	"github.com/Zachkp/folio/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sessionCookie   = "folio_session"
	readHeaderLimit = 5 * time.Second
	shutdownLimit   = 5 * time.Second
)

// Store is the content database as used by the site.
type Store interface {
	Posts(ctx context.Context, limit int) ([]content.Post, error)
	PostBySlug(ctx context.Context, slug string) (content.Post, error)
	SearchPosts(ctx context.Context, q string) ([]content.Post, error)
	CreatePost(ctx context.Context, p content.Post) (content.Post, error)
	Projects(ctx context.Context, featured *bool) ([]content.Project, error)
	Skills(ctx context.Context) ([]content.Skill, error)
	SubmitContact(ctx context.Context, sub content.ContactSubmission) (content.ContactSubmission, error)
	Subscribe(ctx context.Context, email string) error
	RecordPageView(ctx context.Context, page, hashedIP, userAgent string) error
	PrunePageViews(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (store.Stats, error)
}

var _ Store = (*store.Store)(nil)

// Profile is the static biography copy shown on the landing page.
type Profile struct {
	Name    string
	Tagline string
	AboutMe string
}

// Server serves the portfolio.
type Server struct {
	cfg      config.Config
	store    Store
	mailer   notify.Notifier
	fallback content.Dataset
	profile  Profile
	sessions *SessionStore
	loads    sectionCounters
	admin    *adminAuth
	now      func() time.Time
	salt     string
	engine   *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now for splash gates and admin tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithProfile sets the landing page copy.
func WithProfile(p Profile) Option {
	return func(s *Server) { s.profile = p }
}

// WithFallback replaces the bundled fallback dataset.
func WithFallback(ds content.Dataset) Option {
	return func(s *Server) { s.fallback = ds }
}

// New builds the server and its routes.
func New(cfg config.Config, st Store, mailer notify.Notifier, opts ...Option) (*Server, error) {
	fallback, err := content.Fallback()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		mailer:   mailer,
		fallback: fallback,
		now:      time.Now,
		salt:     randomToken(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.admin, err = newAdminAuth(cfg.Admin, cfg.GinMode, s.now)
	if err != nil {
		return nil, err
	}

	capacity := cfg.Session.Capacity
	if capacity <= 0 {
		capacity = 10000
	}
	s.sessions = NewSessionStore(capacity, cfg.Session.TTL, s.newSession)

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.SetHTMLTemplate(tmpl)
	s.routes(r)
	s.engine = r
	return s, nil
}

// Handler exposes the engine for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Sessions exposes the visitor session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Run serves on cfg.Port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderLimit,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on :%s", s.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownLimit)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// sectionCounters are fetch totals per section across all sessions.
type sectionCounters struct {
	posts, projects, skills loader.Counters
}

// LoaderStats reports fetch, failure and fallback totals per section.
func (s *Server) LoaderStats() map[string]loader.CounterStats {
	return map[string]loader.CounterStats{
		"posts":    s.loads.posts.Stats(),
		"projects": s.loads.projects.Stats(),
		"skills":   s.loads.skills.Stats(),
	}
}

func (s *Server) newSession(id, route string) *Session {
	gate := splash.New(splash.Config{
		Duration:   s.cfg.Splash.Duration,
		RouteGated: s.cfg.Splash.RouteGated,
		GatedRoute: s.cfg.Splash.GatedRoute,
	}, splash.WithClock(s.now))
	gate.Mount(route)

	return &Session{
		ID:     id,
		Gate:   gate,
		Scroll: overlay.NewScrollLock(overlay.ScrollAuto),
		build:  s.buildSections,
	}
}

func (s *Server) buildSections(lock *overlay.ScrollLock) *Sections {
	return &Sections{
		Blog: newSection("posts",
			func(ctx context.Context, limit int) ([]content.Post, error) {
				return s.store.Posts(ctx, limit)
			},
			s.fallback.Posts, s.cfg.BlogPageSize, lock, &s.loads.posts,
			func(p content.Post) string { return p.ID }),
		Projects: newSection("projects",
			func(ctx context.Context, _ int) ([]content.Project, error) {
				return s.store.Projects(ctx, nil)
			},
			s.fallback.Projects, 0, lock, &s.loads.projects,
			func(p content.Project) string { return p.ID }),
		Skills: newSection("skills",
			func(ctx context.Context, _ int) ([]content.Skill, error) {
				return s.store.Skills(ctx)
			},
			s.fallback.Skills, 0, lock, &s.loads.skills,
			func(sk content.Skill) string { return sk.ID }),
	}
}

func (s *Server) routes(r *gin.Engine) {
	r.Use(s.visitorTracking())

	r.GET("/", s.handleLanding)
	r.GET("/app", s.handleApp)
	r.GET("/privacy", s.handlePrivacy)

	sections := r.Group("/sections")
	sections.GET("/blog", s.handleBlog)
	sections.POST("/blog/more", s.handleBlogMore)
	sections.POST("/blog/open/:id", s.handleBlogOpen)
	sections.POST("/blog/close", s.handleBlogClose)
	sections.GET("/projects", s.handleProjects)
	sections.POST("/projects/open/:id", s.handleProjectOpen)
	sections.POST("/projects/close", s.handleProjectClose)
	sections.GET("/skills", s.handleSkills)

	r.POST("/contact", s.handleContact)
	r.POST("/newsletter", s.handleNewsletter)

	api := r.Group("/api")
	if len(s.cfg.CORSOrigins) > 0 {
		api.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "hx-request", "hx-target", "hx-trigger", "hx-current-url"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	api.GET("/posts", s.handleAPIPosts)
	api.GET("/posts/:slug", s.handleAPIPost)
	api.GET("/search", s.handleAPISearch)

	s.adminRoutes(r)
}

// visitorSession returns the caller's session, creating one on route when the
// cookie is missing or stale. Only full page loads count as navigation;
// HTMX requests re-use the session as-is.
func (s *Server) visitorSession(c *gin.Context, route string) *Session {
	id, _ := c.Cookie(sessionCookie)
	sess, created := s.sessions.Resolve(id, route)
	if created {
		c.SetCookie(sessionCookie, sess.ID, int(s.cfg.Session.TTL.Seconds()), "/", "", false, true)
	}
	if !created && !isHTMX(c) {
		sess.Navigate(route)
	}
	return sess
}

// existingSession is used by fragment endpoints that never navigate.
func (s *Server) existingSession(c *gin.Context) (*Session, bool) {
	id, _ := c.Cookie(sessionCookie)
	return s.sessions.Lookup(id)
}

func isHTMX(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("HX-Request"), "true")
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatal("Failed to generate token:", err)
	}
	return hex.EncodeToString(b)
}

var templateFuncs = template.FuncMap{
	"formatDate":    content.FormatDate,
	"categoryLabel": content.CategoryLabel,
	"paragraphs": func(text string) []string {
		var out []string
		for _, p := range strings.Split(text, "\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
	"limit": func(n int, tags []string) []string {
		if len(tags) > n {
			return tags[:n]
		}
		return tags
	},
}
