package site

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
)

const (
	adminCookie   = "admin_token"
	adminTokenTTL = 24 * time.Hour
	adminIssuer   = "folio-admin"
	devPassword   = "admin123"
)

// adminAuth checks admin credentials and issues signed session cookies.
type adminAuth struct {
	username     string
	password     string
	passwordHash []byte
	secret       []byte
	now          func() time.Time
}

func newAdminAuth(cfg config.Admin, mode string, now func() time.Time) (*adminAuth, error) {
	a := &adminAuth{
		username:     cfg.Username,
		password:     cfg.Password,
		passwordHash: []byte(cfg.PasswordHash),
		secret:       []byte(cfg.JWTSecret),
		now:          now,
	}
	if a.username == "" {
		a.username = "admin"
	}
	if len(a.passwordHash) == 0 && a.password == "" {
		if mode == gin.ReleaseMode {
			log.Println("Admin login disabled: set ADMIN_PASSWORD_HASH or ADMIN_PASSWORD")
		} else {
			log.Println("WARNING: Using default admin password. Set ADMIN_PASSWORD_HASH environment variable.")
			a.password = devPassword
		}
	}
	if len(a.secret) == 0 {
		// Tokens will not survive a restart.
		a.secret = []byte(randomToken())
	}
	return a, nil
}

func (a *adminAuth) check(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) != 1 {
		return false
	}
	if len(a.passwordHash) > 0 {
		return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	}
	if a.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

func (a *adminAuth) issue() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    adminIssuer,
		Subject:   a.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *adminAuth) verify(raw string) error {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(adminIssuer),
		jwt.WithSubject(a.username),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid admin token")
	}
	return nil
}

// adminAuthMiddleware sends visitors without a valid token to the login page.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || s.admin.verify(token) != nil {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

type postForm struct {
	Title         string `form:"title" binding:"required"`
	Summary       string `form:"summary" binding:"required"`
	Content       string `form:"content" binding:"required"`
	Tags          string `form:"tags" binding:"required"`
	FeaturedImage string `form:"featured_image" binding:"omitempty,url"`
	Author        string `form:"author" binding:"required"`
}

func (s *Server) adminRoutes(r *gin.Engine) {
	r.GET("/admin/login", func(c *gin.Context) {
		s.visitorSession(c, c.Request.URL.Path)
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		if !s.admin.check(c.PostForm("username"), c.PostForm("password")) {
			log.Printf("Failed admin login attempt from %s", s.hashIP(c.ClientIP()))
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"error": "Invalid credentials",
			})
			return
		}
		token, err := s.admin.issue()
		if err != nil {
			log.Printf("Error issuing admin token: %v", err)
			c.HTML(http.StatusInternalServerError, "admin-login.html", gin.H{
				"error": "Login failed",
			})
			return
		}
		c.SetCookie(adminCookie, token, int(adminTokenTTL.Seconds()), "/admin", "", false, true)
		log.Printf("Admin login successful from %s", s.hashIP(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", false, true)
		log.Printf("Admin logout from %s", s.hashIP(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(s.adminAuthMiddleware())

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		s.visitorSession(c, c.Request.URL.Path)
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			log.Printf("Error loading admin stats: %v", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats":    stats,
			"sessions": s.sessions.Stats(),
			"loaders":  s.LoaderStats(),
			"author":   s.profile.Name,
		})
	})

	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"content":  stats,
			"sessions": s.sessions.Stats(),
			"loaders":  s.LoaderStats(),
		})
	})

	adminGroup.POST("/posts", func(c *gin.Context) {
		var form postForm
		if err := c.ShouldBind(&form); err != nil {
			c.HTML(http.StatusUnprocessableEntity, "admin-post-result.html", gin.H{
				"error": "Semua field wajib diisi dan URL gambar harus valid.",
			})
			return
		}
		post, err := s.store.CreatePost(c.Request.Context(), content.Post{
			Title:         strings.TrimSpace(form.Title),
			Summary:       strings.TrimSpace(form.Summary),
			Content:       form.Content,
			Author:        strings.TrimSpace(form.Author),
			Tags:          content.SplitTags(form.Tags),
			FeaturedImage: strings.TrimSpace(form.FeaturedImage),
			Slug:          content.Slug(form.Title),
			ReadingTime:   content.ReadingTime(form.Content),
		})
		if err != nil {
			log.Printf("Error creating post: %v", err)
			c.HTML(http.StatusInternalServerError, "admin-post-result.html", gin.H{
				"error": "Gagal membuat artikel. Silakan coba lagi.",
			})
			return
		}
		log.Printf("Post %s created by admin from %s", post.Slug, s.hashIP(c.ClientIP()))
		c.HTML(http.StatusCreated, "admin-post-result.html", gin.H{
			"post": post,
		})
	})

	// Privacy compliance: drop page views older than twelve months.
	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		n, err := s.PruneVisitorData(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete", "removed": n})
	})
}
