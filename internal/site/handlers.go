package site

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/overlay"
	"github.com/Zachkp/folio/internal/store"
)

// mainData is everything the main content templates render.
type mainData struct {
	Profile      Profile
	Blog         BlogView
	Projects     ProjectsView
	Skills       SkillsView
	ScrollPolicy overlay.ScrollPolicy
}

type splashData struct {
	RemainingMs int64
	Next        string
}

func (s *Server) mainData(sess *Session, secs *Sections) mainData {
	return mainData{
		Profile:      s.profile,
		Blog:         BlogView{View: secs.Blog.View(), PageSize: s.cfg.BlogPageSize},
		Projects:     newProjectsView(secs.Projects.View(), "all"),
		Skills:       newSkillsView(secs.Skills.View(), "all"),
		ScrollPolicy: sess.Scroll.Policy(),
	}
}

func (s *Server) splashData(sess *Session) splashData {
	return splashData{RemainingMs: sess.Gate.Remaining().Milliseconds(), Next: "/app"}
}

// handleLanding is the gated route. While the gate presents, the splash is
// rendered and re-requests /app once the remaining time has passed.
func (s *Server) handleLanding(c *gin.Context) {
	sess := s.visitorSession(c, "/")
	secs, ok := sess.Sections(c.Request.Context())
	if !ok {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"profile": s.profile,
			"splash":  s.splashData(sess),
		})
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"profile": s.profile,
		"main":    s.mainData(sess, secs),
	})
}

// handleApp swaps the splash for the main content. It never counts as a
// navigation.
func (s *Server) handleApp(c *gin.Context) {
	sess, ok := s.existingSession(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	secs, ok := sess.Sections(c.Request.Context())
	if !ok {
		c.HTML(http.StatusOK, "splash.html", s.splashData(sess))
		return
	}
	c.HTML(http.StatusOK, "main.html", s.mainData(sess, secs))
}

func (s *Server) handlePrivacy(c *gin.Context) {
	s.visitorSession(c, c.Request.URL.Path)
	c.HTML(http.StatusOK, "privacy.html", gin.H{
		"title": "Privacy Policy",
	})
}

// mountedSections answers 425 Too Early while the gate still withholds the
// content subtree.
func (s *Server) mountedSections(c *gin.Context) (*Session, *Sections, bool) {
	sess, ok := s.existingSession(c)
	if !ok {
		c.String(http.StatusTooEarly, "session not started")
		return nil, nil, false
	}
	secs, ok := sess.Sections(c.Request.Context())
	if !ok {
		c.Header("Retry-After", strconv.FormatInt(int64(sess.Gate.Remaining().Seconds())+1, 10))
		c.String(http.StatusTooEarly, "splash still presenting")
		return nil, nil, false
	}
	return sess, secs, true
}

func (s *Server) renderBlog(c *gin.Context, status int, sess *Session, secs *Sections) {
	c.HTML(status, "blog.html", gin.H{
		"Blog":         BlogView{View: secs.Blog.View(), PageSize: s.cfg.BlogPageSize},
		"ScrollPolicy": sess.Scroll.Policy(),
	})
}

func (s *Server) handleBlog(c *gin.Context) {
	sess, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	s.renderBlog(c, http.StatusOK, sess, secs)
}

// handleBlogMore expands the blog to every post. The fetch runs in the
// background and the Loading fragment polls for it. It is ignored while the
// section is still loading.
func (s *Server) handleBlogMore(c *gin.Context) {
	sess, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	if !secs.Blog.Reload(context.WithoutCancel(c.Request.Context()), 0) {
		log.Printf("Ignored show-all for session %s: posts still loading", sess.ID)
	}
	s.renderBlog(c, http.StatusOK, sess, secs)
}

func overlayStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownRecord):
		return http.StatusNotFound
	case errors.Is(err, overlay.ErrLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleBlogOpen(c *gin.Context) {
	sess, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	status := http.StatusOK
	if err := secs.Blog.Open(c.Param("id")); err != nil {
		status = overlayStatus(err)
	}
	s.renderBlog(c, status, sess, secs)
}

func (s *Server) handleBlogClose(c *gin.Context) {
	sess, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	secs.Blog.Close()
	s.renderBlog(c, http.StatusOK, sess, secs)
}

func (s *Server) renderProjects(c *gin.Context, status int, sess *Session, secs *Sections) {
	c.HTML(status, "projects.html", gin.H{
		"Projects":     newProjectsView(secs.Projects.View(), c.Query("filter")),
		"ScrollPolicy": sess.Scroll.Policy(),
	})
}

func (s *Server) handleProjects(c *gin.Context) {
	sess, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	s.renderProjects(c, http.StatusOK, sess, secs)
}

func (s *Server) handleProjectOpen(c *gin.Context) {
	sess, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	status := http.StatusOK
	if err := secs.Projects.Open(c.Param("id")); err != nil {
		status = overlayStatus(err)
	}
	s.renderProjects(c, status, sess, secs)
}

func (s *Server) handleProjectClose(c *gin.Context) {
	sess, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	secs.Projects.Close()
	s.renderProjects(c, http.StatusOK, sess, secs)
}

func (s *Server) handleSkills(c *gin.Context) {
	_, secs, ok := s.mountedSections(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "skills.html", gin.H{
		"Skills": newSkillsView(secs.Skills.View(), c.DefaultQuery("category", "all")),
	})
}

type contactForm struct {
	Name    string `form:"name" binding:"required,max=200"`
	Email   string `form:"email" binding:"required,email"`
	Subject string `form:"subject" binding:"max=200"`
	Message string `form:"message" binding:"required,max=5000"`
}

func (s *Server) handleContact(c *gin.Context) {
	var form contactForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusUnprocessableEntity, "contact-result.html", gin.H{
			"error": "Mohon lengkapi semua field yang wajib diisi.",
		})
		return
	}

	sub, err := s.store.SubmitContact(c.Request.Context(), content.ContactSubmission{
		Name:    strings.TrimSpace(form.Name),
		Email:   strings.TrimSpace(form.Email),
		Subject: strings.TrimSpace(form.Subject),
		Message: strings.TrimSpace(form.Message),
	})
	if err != nil {
		log.Printf("Error storing contact submission: %v", err)
		c.HTML(http.StatusOK, "contact-result.html", gin.H{
			"error": "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	}

	if s.mailer != nil {
		if err := s.mailer.NotifyContact(sub); err != nil {
			log.Printf("Error sending email: %v", err)
		}
	}

	c.HTML(http.StatusOK, "contact-result.html", gin.H{
		"success": "Thank you for your message! I'll get back to you soon.",
	})
}

type newsletterForm struct {
	Email string `form:"email" binding:"required,email"`
}

func (s *Server) handleNewsletter(c *gin.Context) {
	var form newsletterForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusUnprocessableEntity, "contact-result.html", gin.H{
			"error": "Alamat email tidak valid.",
		})
		return
	}
	if err := s.store.Subscribe(c.Request.Context(), form.Email); err != nil {
		log.Printf("Error subscribing to newsletter: %v", err)
		c.HTML(http.StatusOK, "contact-result.html", gin.H{
			"error": "Gagal berlangganan. Silakan coba lagi.",
		})
		return
	}
	c.HTML(http.StatusOK, "contact-result.html", gin.H{
		"success": "Terima kasih sudah berlangganan!",
	})
}

func (s *Server) handleAPIPosts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	posts, err := s.store.Posts(c.Request.Context(), limit)
	if err != nil {
		log.Printf("Error fetching blog posts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load posts"})
		return
	}
	if posts == nil {
		posts = []content.Post{}
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) handleAPIPost(c *gin.Context) {
	post, err := s.store.PostBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		log.Printf("Error fetching blog post: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load post"})
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleAPISearch(c *gin.Context) {
	posts, err := s.store.SearchPosts(c.Request.Context(), c.Query("q"))
	if err != nil {
		log.Printf("Error searching blog posts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}
	if posts == nil {
		posts = []content.Post{}
	}
	c.JSON(http.StatusOK, posts)
}
