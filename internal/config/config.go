// Package config loads the site configuration from the environment. A .env
// file in the working directory is read first.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// Config is the full site configuration.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"`

	Splash  Splash  `envPrefix:"SPLASH_"`
	Session Session `envPrefix:"SESSION_"`

	BlogPageSize int `env:"BLOG_PAGE_SIZE" envDefault:"4"`

	Database Database
	Mail     Mail
	Admin    Admin `envPrefix:"ADMIN_"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8080"`
}

// Splash configures the splash gate. Duration is the only knob for the
// presentation window.
type Splash struct {
	Duration   time.Duration `env:"DURATION" envDefault:"2s"`
	RouteGated bool          `env:"ROUTE_GATED" envDefault:"false"`
	GatedRoute string        `env:"GATED_ROUTE" envDefault:"/"`
}

// Session bounds the per-visitor state kept in memory.
type Session struct {
	TTL      time.Duration `env:"TTL" envDefault:"30m"`
	Capacity int           `env:"CAPACITY" envDefault:"10000"`
}

// Database selects the content store. Turso is tried first when configured.
type Database struct {
	TursoURL   string `env:"TURSO_DATABASE_URL"`
	TursoToken string `env:"TURSO_AUTH_TOKEN"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/portfolio.db"`
}

// Mail configures contact form notifications.
type Mail struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"EMAIL_FROM" envDefault:"noreply@zach.dev"`
	To           string `env:"TO_EMAIL" envDefault:"zachkordaspotter@gmail.com"`
	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
}

// Admin configures the admin area.
type Admin struct {
	Username     string `env:"USERNAME" envDefault:"admin"`
	Password     string `env:"PASSWORD"`
	PasswordHash string `env:"PASSWORD_HASH"`
	JWTSecret    string `env:"JWT_SECRET"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BlogPageSize < 1 {
		return Config{}, fmt.Errorf("BLOG_PAGE_SIZE must be positive, got %d", cfg.BlogPageSize)
	}
	return cfg, nil
}
