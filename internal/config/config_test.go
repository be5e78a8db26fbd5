package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/sankalp.db", cfg.DBPath)
	assert.Equal(t, 18, cfg.AtRiskHour)
	assert.Equal(t, 15*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 10, cfg.AuthRateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "http://localhost:8080/auth/google/callback", cfg.GoogleCallbackURL)
	assert.False(t, cfg.SMTPConfigured())
	assert.False(t, cfg.GoogleConfigured())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":              "9000",
		"DATABASE_URL":      "postgres://localhost/sankalp",
		"APP_TIMEZONE":      "Asia/Kolkata",
		"AT_RISK_HOUR":      "20",
		"REMINDER_INTERVAL": "5m",
		"COOKIE_SECURE":     "true",
		"FRONTEND_URL":      "https://sankalp.app/",
		"SMTP_HOST":         "smtp.example.com",
		"SMTP_FROM":         "noreply@sankalp.app",
		"LOG_FORMAT":        "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres://localhost/sankalp", cfg.DatabaseURL)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, 20, cfg.AtRiskHour)
	assert.Equal(t, 5*time.Minute, cfg.ReminderInterval)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "https://sankalp.app", cfg.FrontendURL)
	assert.True(t, cfg.SMTPConfigured())
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestFromEnv_ReportsEveryInvalidValue(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"PORT":              "eighty",
		"AT_RISK_HOUR":      "25",
		"REMINDER_INTERVAL": "soon",
		"APP_TIMEZONE":      "Mars/Olympus",
		"RATE_LIMIT_WINDOW": "0s",
	}))
	require.Error(t, err)

	for _, key := range []string{"PORT", "AT_RISK_HOUR", "REMINDER_INTERVAL", "APP_TIMEZONE", "RATE_LIMIT_WINDOW"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SANKALP_CONFIG_TEST_PORT=1\nLOG_LEVEL=debug\n"), 0o600))

	t.Setenv("LOG_LEVEL", "warn") // already set: the environment wins

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "1", os.Getenv("SANKALP_CONFIG_TEST_PORT"))
	os.Unsetenv("SANKALP_CONFIG_TEST_PORT")
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
