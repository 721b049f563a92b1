package site

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type pageView struct {
	page, hashedIP, userAgent string
}

type fakeStore struct {
	mu sync.Mutex

	posts    []content.Post
	projects []content.Project
	skills   []content.Skill
	err      error

	// postsGate, when set, holds every Posts call until it is closed.
	postsGate chan struct{}

	postLimits []int
	created    []content.Post
	contacts   []content.ContactSubmission
	subs       []string
	views      []pageView
	pruned     time.Time
	stats      store.Stats
}

func (f *fakeStore) Posts(_ context.Context, limit int) ([]content.Post, error) {
	if f.postsGate != nil {
		<-f.postsGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postLimits = append(f.postLimits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.posts) {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func (f *fakeStore) PostBySlug(_ context.Context, slug string) (content.Post, error) {
	for _, p := range f.posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return content.Post{}, store.ErrNotFound
}

func (f *fakeStore) SearchPosts(_ context.Context, q string) ([]content.Post, error) {
	var out []content.Post
	for _, p := range f.posts {
		if q != "" && strings.Contains(strings.ToLower(p.Title), strings.ToLower(q)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePost(_ context.Context, p content.Post) (content.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = "new-post"
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeStore) Projects(_ context.Context, _ *bool) ([]content.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.projects, nil
}

func (f *fakeStore) Skills(context.Context) ([]content.Skill, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.skills, nil
}

func (f *fakeStore) SubmitContact(_ context.Context, sub content.ContactSubmission) (content.ContactSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return content.ContactSubmission{}, f.err
	}
	sub.ID = "contact-1"
	f.contacts = append(f.contacts, sub)
	return sub, nil
}

func (f *fakeStore) Subscribe(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, email)
	return nil
}

func (f *fakeStore) RecordPageView(_ context.Context, page, hashedIP, userAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, pageView{page, hashedIP, userAgent})
	return nil
}

func (f *fakeStore) PrunePageViews(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned = cutoff
	return 2, nil
}

func (f *fakeStore) Stats(context.Context) (store.Stats, error) {
	return f.stats, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []content.ContactSubmission
	err  error
}

func (n *fakeNotifier) NotifyContact(sub content.ContactSubmission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sub)
	return n.err
}

func testConfig() config.Config {
	return config.Config{
		Port:    "0",
		GinMode: gin.TestMode,
		Splash: config.Splash{
			Duration:   2 * time.Second,
			GatedRoute: "/",
		},
		Session:      config.Session{TTL: time.Hour, Capacity: 16},
		BlogPageSize: 4,
		Admin: config.Admin{
			Username:  "admin",
			Password:  "secret",
			JWTSecret: "test-secret",
		},
		CORSOrigins: []string{"http://localhost:3000"},
	}
}

func samplePosts(n int) []content.Post {
	posts := make([]content.Post, n)
	for i := range posts {
		posts[i] = content.Post{
			ID:        "p" + string(rune('1'+i)),
			Title:     "Post number " + string(rune('1'+i)),
			Slug:      "post-" + string(rune('1'+i)),
			Summary:   "Summary",
			Content:   "Body text",
			CreatedAt: time.Date(2024, 1, 15-i, 0, 0, 0, 0, time.UTC),
			Tags:      []string{"go"},
		}
	}
	return posts
}

func sampleStore() *fakeStore {
	return &fakeStore{
		posts: samplePosts(6),
		projects: []content.Project{
			{ID: "x1", Title: "Terminal Mail", Featured: true, Technologies: []string{"Go"}},
			{ID: "x2", Title: "Music Player", Technologies: []string{"Go", "mpv"}},
		},
		skills: []content.Skill{
			{ID: "s1", Name: "Go", Level: 90, Category: content.CategoryBackend},
			{ID: "s2", Name: "HTMX", Level: 80, Category: content.CategoryFrontend},
		},
	}
}

type testServer struct {
	*Server
	clock  *fakeClock
	store  *fakeStore
	mailer *fakeNotifier
	cookie *http.Cookie
}

func newTestServer(t *testing.T, cfg config.Config, st *fakeStore, opts ...Option) *testServer {
	t.Helper()
	clock := newFakeClock()
	mailer := &fakeNotifier{}
	opts = append([]Option{WithClock(clock.Now), WithProfile(Profile{Name: "Zach", AboutMe: "Hello there"})}, opts...)
	s, err := New(cfg, st, mailer, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testServer{Server: s, clock: clock, store: st, mailer: mailer}
}

type request struct {
	method string
	path   string
	form   url.Values
	htmx   bool
	header map[string]string
}

func (ts *testServer) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	if r.method == "" {
		r.method = http.MethodGet
	}
	var req *http.Request
	if r.form != nil {
		req = httptest.NewRequest(r.method, r.path, strings.NewReader(r.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(r.method, r.path, nil)
	}
	if r.htmx {
		req.Header.Set("HX-Request", "true")
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			ts.cookie = c
		}
	}
	return w
}

// dismiss loads the landing page and waits out the splash.
func (ts *testServer) dismiss(t *testing.T) {
	t.Helper()
	ts.do(t, request{path: "/"})
	ts.clock.Advance(2 * time.Second)
	w := ts.do(t, request{path: "/app", htmx: true})
	if !strings.Contains(w.Body.String(), `id="blog"`) {
		t.Fatalf("expected main content after dismissal, got %s", w.Body.String())
	}
	ts.settle(t)
}

// settle waits for the visitor's section fetches to return.
func (ts *testServer) settle(t *testing.T) {
	t.Helper()
	secs := ts.visitorSections(t)
	secs.wait()
}

func (ts *testServer) visitorSections(t *testing.T) *Sections {
	t.Helper()
	sess, ok := ts.Sessions().Lookup(ts.cookie.Value)
	if !ok {
		t.Fatal("no session for cookie")
	}
	secs, ok := sess.Mounted()
	if !ok {
		t.Fatal("sections not mounted")
	}
	return secs
}

func TestLandingShowsSplashThenContent(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())

	w := ts.do(t, request{path: "/"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `hx-get="/app"`) || !strings.Contains(body, "delay:2000ms") {
		t.Fatalf("expected splash polling /app after 2000ms, got %s", body)
	}
	if strings.Contains(body, `id="blog"`) {
		t.Fatal("sections must not render while the splash presents")
	}
	if ts.cookie == nil {
		t.Fatal("expected session cookie")
	}

	w = ts.do(t, request{path: "/sections/blog", htmx: true})
	if w.Code != http.StatusTooEarly {
		t.Fatalf("expected 425 before dismissal, got %d", w.Code)
	}
	if len(ts.store.postLimits) != 0 {
		t.Fatal("no fetch may start before the splash is dismissed")
	}

	ts.clock.Advance(1999 * time.Millisecond)
	w = ts.do(t, request{path: "/app", htmx: true})
	if !strings.Contains(w.Body.String(), "delay:1ms") {
		t.Fatalf("expected splash with 1ms left, got %s", w.Body.String())
	}

	ts.clock.Advance(time.Millisecond)
	w = ts.do(t, request{path: "/app", htmx: true})
	if !strings.Contains(w.Body.String(), `id="blog"`) {
		t.Fatal("expected sections to mount at the deadline")
	}
	ts.settle(t)
	w = ts.do(t, request{path: "/app", htmx: true})
	body = w.Body.String()
	for _, want := range []string{`id="blog"`, "Post number 1", "Terminal Mail", `id="skills"`, "Hello there"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in main content", want)
		}
	}
	if got := ts.store.postLimits; len(got) != 1 || got[0] != 4 {
		t.Fatalf("expected one posts fetch with limit 4, got %v", got)
	}
}

func TestAppWithoutSessionRedirects(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	w := ts.do(t, request{path: "/app", htmx: true})
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestFixedGateReloadDoesNotRestart(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	ts.dismiss(t)

	w := ts.do(t, request{path: "/"})
	if !strings.Contains(w.Body.String(), `id="blog"`) {
		t.Fatal("fixed gate must stay dismissed on later page loads")
	}
}

func TestRouteGatedNavigationRepresents(t *testing.T) {
	cfg := testConfig()
	cfg.Splash.RouteGated = true
	ts := newTestServer(t, cfg, sampleStore())
	ts.dismiss(t)

	ts.do(t, request{path: "/privacy"})
	w := ts.do(t, request{path: "/"})
	if !strings.Contains(w.Body.String(), `hx-get="/app"`) {
		t.Fatal("expected splash after navigating back to the gated route")
	}
	sess, ok := ts.Sessions().Lookup(ts.cookie.Value)
	if !ok {
		t.Fatal("session lost")
	}
	if _, mounted := sess.Mounted(); mounted {
		t.Fatal("sections must unmount while the splash presents again")
	}
}

func TestStoreFailureFallsBack(t *testing.T) {
	st := sampleStore()
	st.err = errors.New("connection refused")
	ts := newTestServer(t, testConfig(), st, WithFallback(content.Dataset{
		Projects: []content.Project{{ID: "f1", Title: "Fallback Portfolio"}},
	}))
	ts.dismiss(t)

	w := ts.do(t, request{path: "/sections/blog", htmx: true})
	if !strings.Contains(w.Body.String(), "Belum ada artikel.") {
		t.Fatalf("expected empty blog, got %s", w.Body.String())
	}
	w = ts.do(t, request{path: "/sections/projects", htmx: true})
	if !strings.Contains(w.Body.String(), "Fallback Portfolio") {
		t.Fatalf("expected fallback project, got %s", w.Body.String())
	}
	w = ts.do(t, request{path: "/sections/skills", htmx: true})
	if !strings.Contains(w.Body.String(), "Belum ada keahlian.") {
		t.Fatalf("expected empty skills, got %s", w.Body.String())
	}
}

func TestBlogShowAll(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	ts.dismiss(t)

	w := ts.do(t, request{path: "/sections/blog", htmx: true})
	body := w.Body.String()
	if strings.Contains(body, "Post number 5") || !strings.Contains(body, "Lihat Semua Artikel") {
		t.Fatal("expected first page with a show-all button")
	}

	w = ts.do(t, request{method: http.MethodPost, path: "/sections/blog/more", htmx: true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	ts.settle(t)
	w = ts.do(t, request{path: "/sections/blog", htmx: true})
	body = w.Body.String()
	if !strings.Contains(body, "Post number 6") {
		t.Fatal("expected every post after show-all")
	}
	if strings.Contains(body, "Lihat Semua Artikel") {
		t.Fatal("show-all button must disappear once expanded")
	}
	if got := ts.store.postLimits; got[len(got)-1] != 0 {
		t.Fatalf("expected unbounded fetch, got limits %v", got)
	}
}

func TestOverlayLocksScroll(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	ts.dismiss(t)

	w := ts.do(t, request{method: http.MethodPost, path: "/sections/blog/open/p2", htmx: true})
	body := w.Body.String()
	if w.Code != http.StatusOK || !strings.Contains(body, `role="dialog"`) {
		t.Fatalf("expected blog overlay, got %d", w.Code)
	}
	if !strings.Contains(body, "overflow: hidden") {
		t.Fatal("expected scrolling hidden while the overlay is open")
	}
	if !strings.Contains(body, `hx-post="/sections/blog/close" hx-trigger="click target:this"`) {
		t.Fatal("expected a backdrop click to close the overlay")
	}

	w = ts.do(t, request{method: http.MethodPost, path: "/sections/projects/open/x1", htmx: true})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second overlay, got %d", w.Code)
	}

	w = ts.do(t, request{method: http.MethodPost, path: "/sections/blog/close", htmx: true})
	body = w.Body.String()
	if strings.Contains(body, `role="dialog"`) || !strings.Contains(body, "overflow: auto") {
		t.Fatal("expected overlay closed and scrolling restored")
	}

	w = ts.do(t, request{method: http.MethodPost, path: "/sections/projects/open/x1?filter=featured", htmx: true})
	body = w.Body.String()
	if w.Code != http.StatusOK || !strings.Contains(body, "Terminal Mail") {
		t.Fatalf("expected project overlay after blog closed, got %d", w.Code)
	}
	if !strings.Contains(body, `hx-post="/sections/projects/close?filter=featured" hx-trigger="click target:this"`) {
		t.Fatal("expected a backdrop click to close the project overlay")
	}

	w = ts.do(t, request{method: http.MethodPost, path: "/sections/blog/open/missing", htmx: true})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown post, got %d", w.Code)
	}
}

func TestProjectFilterAndSkillTabs(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	ts.dismiss(t)

	w := ts.do(t, request{path: "/sections/projects?filter=featured", htmx: true})
	body := w.Body.String()
	if !strings.Contains(body, "Terminal Mail") || strings.Contains(body, "Music Player") {
		t.Fatal("expected only featured projects")
	}

	w = ts.do(t, request{path: "/sections/skills?category=frontend", htmx: true})
	body = w.Body.String()
	if !strings.Contains(body, "HTMX") || strings.Contains(body, ">Go<") {
		t.Fatalf("expected only frontend skills, got %s", body)
	}
}

func TestContactStoresAndNotifies(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())

	w := ts.do(t, request{method: http.MethodPost, path: "/contact", htmx: true, form: url.Values{
		"name":    {"Ana"},
		"email":   {"ana@example.com"},
		"subject": {"Hi"},
		"message": {"Let's talk"},
	}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Thank you") {
		t.Fatalf("expected success, got %d %s", w.Code, w.Body.String())
	}
	if len(ts.store.contacts) != 1 || ts.store.contacts[0].Name != "Ana" {
		t.Fatalf("expected stored submission, got %+v", ts.store.contacts)
	}
	if len(ts.mailer.sent) != 1 || ts.mailer.sent[0].ID != "contact-1" {
		t.Fatalf("expected notification for stored submission, got %+v", ts.mailer.sent)
	}
}

func TestContactSurvivesNotifyFailure(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	ts.mailer.err = errors.New("smtp down")

	w := ts.do(t, request{method: http.MethodPost, path: "/contact", htmx: true, form: url.Values{
		"name": {"Ana"}, "email": {"ana@example.com"}, "message": {"Hello"},
	}})
	if !strings.Contains(w.Body.String(), "Thank you") {
		t.Fatal("a failed notification must not fail the submission")
	}
}

func TestContactValidation(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	w := ts.do(t, request{method: http.MethodPost, path: "/contact", htmx: true, form: url.Values{
		"name": {"Ana"}, "email": {"not-an-email"}, "message": {"Hello"},
	}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if len(ts.store.contacts) != 0 {
		t.Fatal("invalid submission must not be stored")
	}
}

func TestNewsletter(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	w := ts.do(t, request{method: http.MethodPost, path: "/newsletter", htmx: true, form: url.Values{
		"email": {"reader@example.com"},
	}})
	if w.Code != http.StatusOK || len(ts.store.subs) != 1 {
		t.Fatalf("expected subscription, got %d %v", w.Code, ts.store.subs)
	}
}

func TestAPIPosts(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())

	w := ts.do(t, request{path: "/api/posts?limit=2"})
	var posts []content.Post
	if err := json.Unmarshal(w.Body.Bytes(), &posts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	if w := ts.do(t, request{path: "/api/posts?limit=-1"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", w.Code)
	}
	if w := ts.do(t, request{path: "/api/posts/post-3"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for known slug, got %d", w.Code)
	}
	if w := ts.do(t, request{path: "/api/posts/nope"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown slug, got %d", w.Code)
	}

	w = ts.do(t, request{path: "/api/search?q=zzz"})
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %s", w.Body.String())
	}
}

func TestVisitorTracking(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())

	ts.do(t, request{path: "/", header: map[string]string{"User-Agent": "test-agent"}})
	ts.do(t, request{path: "/", header: map[string]string{"DNT": "1"}})
	ts.do(t, request{path: "/app", htmx: true})
	ts.do(t, request{path: "/privacy"})
	ts.do(t, request{path: "/api/posts"})

	if len(ts.store.views) != 1 {
		t.Fatalf("expected exactly one recorded view, got %+v", ts.store.views)
	}
	v := ts.store.views[0]
	if v.page != "/" || v.userAgent != "test-agent" || len(v.hashedIP) != 16 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestSessionCookieIsReused(t *testing.T) {
	ts := newTestServer(t, testConfig(), sampleStore())
	ts.do(t, request{path: "/"})
	first := ts.cookie.Value
	ts.do(t, request{path: "/"})
	if ts.cookie.Value != first {
		t.Fatal("expected the same session across page loads")
	}
	if got := ts.Sessions().Stats().Created; got != 1 {
		t.Fatalf("expected one session, got %d", got)
	}
}

func TestHungFetchOnlyStallsItsSection(t *testing.T) {
	st := sampleStore()
	st.postsGate = make(chan struct{})
	ts := newTestServer(t, testConfig(), st)
	t.Cleanup(func() { close(st.postsGate) })

	ts.do(t, request{path: "/"})
	ts.clock.Advance(2 * time.Second)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- ts.do(t, request{path: "/app", htmx: true}) }()
	var w *httptest.ResponseRecorder
	select {
	case w = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("GET /app blocked on the posts fetch")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	secs := ts.visitorSections(t)
	secs.Projects.Wait()
	secs.Skills.Wait()

	body := ts.do(t, request{path: "/app", htmx: true}).Body.String()
	if !strings.Contains(body, "Terminal Mail") || !strings.Contains(body, ">HTMX<") {
		t.Fatal("expected projects and skills to render while posts hang")
	}
	if !strings.Contains(body, `hx-get="/sections/blog" hx-trigger="load delay:500ms"`) {
		t.Fatal("expected the blog to stay Loading and keep polling")
	}
	if !secs.Blog.View().Loading() {
		t.Fatal("expected blog Loading while its fetch hangs")
	}
}

func TestLoaderStatsCountOutcomes(t *testing.T) {
	st := sampleStore()
	st.err = errors.New("connection refused")
	ts := newTestServer(t, testConfig(), st)
	ts.dismiss(t)

	stats := ts.LoaderStats()
	for _, name := range []string{"posts", "projects", "skills"} {
		c := stats[name]
		if c.Fetches != 1 || c.Failures != 1 || c.Fallbacks != 1 {
			t.Fatalf("unexpected %s counters %+v", name, c)
		}
	}
}
