// Package config loads the process configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the typed view of every setting the server and the admin CLI
// read. Zero values are never used directly: FromEnv fills defaults.
type Config struct {
	Port int

	// DatabaseURL selects Postgres when set; otherwise SQLite at DBPath.
	DatabaseURL string
	DBPath      string

	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	FrontendURL        string
	CookieSecure       bool

	// RedisURL selects the shared cache; empty means in-process memory.
	RedisURL string
	// AMQPURL routes notifications through a queue; empty sends inline.
	AMQPURL   string
	AMQPQueue string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Location decides which calendar day "today" is.
	Location         *time.Location
	AtRiskHour       int
	ReminderInterval time.Duration

	RateLimit       int
	AuthRateLimit   int
	RateLimitWindow time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string
}

// SMTPConfigured reports whether outgoing email can be delivered.
func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// GoogleConfigured reports whether Google sign-in can be offered.
func (c Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads the given .env files (a missing file is fine) and then parses
// the process environment. Variables already set in the environment win
// over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. All invalid values are
// reported together.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Port:               p.int("PORT", 8080),
		DatabaseURL:        p.str("DATABASE_URL", ""),
		DBPath:             p.str("DB_PATH", "data/sankalp.db"),
		JWTSecret:          p.str("JWT_SECRET", ""),
		GoogleClientID:     p.str("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: p.str("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:  p.str("GOOGLE_CALLBACK_URL", ""),
		FrontendURL:        strings.TrimRight(p.str("FRONTEND_URL", "http://localhost:3000"), "/"),
		CookieSecure:       p.bool("COOKIE_SECURE", false),
		RedisURL:           p.str("REDIS_URL", ""),
		AMQPURL:            p.str("AMQP_URL", ""),
		AMQPQueue:          p.str("AMQP_QUEUE", "sankalp.notifications"),
		SMTPHost:           p.str("SMTP_HOST", ""),
		SMTPPort:           p.int("SMTP_PORT", 587),
		SMTPUsername:       p.str("SMTP_USERNAME", ""),
		SMTPPassword:       p.str("SMTP_PASSWORD", ""),
		SMTPFrom:           p.str("SMTP_FROM", ""),
		AtRiskHour:         p.int("AT_RISK_HOUR", 18),
		ReminderInterval:   p.duration("REMINDER_INTERVAL", 15*time.Minute),
		RateLimit:          p.int("RATE_LIMIT", 100),
		AuthRateLimit:      p.int("AUTH_RATE_LIMIT", 10),
		RateLimitWindow:    p.duration("RATE_LIMIT_WINDOW", time.Minute),
		LogLevel:           p.str("LOG_LEVEL", "info"),
		LogFormat:          p.str("LOG_FORMAT", "text"),
		LogFile:            p.str("LOG_FILE", ""),
	}

	tz := p.str("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		p.fail("APP_TIMEZONE", tz, err)
		loc = time.UTC
	}
	cfg.Location = loc

	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		p.fail("PORT", strconv.Itoa(cfg.Port), errors.New("out of range"))
	}
	if cfg.AtRiskHour < 0 || cfg.AtRiskHour > 23 {
		p.fail("AT_RISK_HOUR", strconv.Itoa(cfg.AtRiskHour), errors.New("must be 0-23"))
	}
	if cfg.ReminderInterval <= 0 {
		p.fail("REMINDER_INTERVAL", cfg.ReminderInterval.String(), errors.New("must be positive"))
	}
	if cfg.RateLimitWindow <= 0 {
		p.fail("RATE_LIMIT_WINDOW", cfg.RateLimitWindow.String(), errors.New("must be positive"))
	}
	if cfg.RateLimit <= 0 || cfg.AuthRateLimit <= 0 {
		p.fail("RATE_LIMIT", "", errors.New("limits must be positive"))
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		p.fail("LOG_FORMAT", cfg.LogFormat, errors.New("want text or json"))
	}

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("config: invalid %s=%q: %w", key, value, err))
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
