package site

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
)

// Page views older than this are pruned.
const visitorRetentionMonths = 12

// hashIP hashes an address with the per-process salt so raw IPs are never
// stored.
func (s *Server) hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + s.salt))
	return hex.EncodeToString(sum[:])[:16]
}

var untrackedPrefixes = []string{
	"/static/", "/images/", "/admin", "/favicon", "/privacy", "/sections/", "/api/", "/app",
}

// visitorTracking records full page views with a hashed IP. Fragments,
// static files and admin pages are skipped, and Do Not Track is honored.
func (s *Server) visitorTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != "GET" || isHTMX(c) || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		for _, prefix := range untrackedPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}
		if err := s.store.RecordPageView(c.Request.Context(), path, s.hashIP(c.ClientIP()), c.GetHeader("User-Agent")); err != nil {
			log.Printf("Error recording visitor: %v", err)
		}
	}
}

// PruneVisitorData removes page views older than the retention window.
func (s *Server) PruneVisitorData(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, -visitorRetentionMonths, 0)
	n, err := s.store.PrunePageViews(ctx, cutoff)
	if err != nil {
		log.Printf("Error cleaning up old visitor data: %v", err)
		return 0, err
	}
	if n > 0 {
		log.Printf("Privacy cleanup: Removed %d visitor records older than %d months", n, visitorRetentionMonths)
	}
	return n, nil
}
