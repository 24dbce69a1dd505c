package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, 5*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "auth.events", cfg.EventsExchange)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("RATE_LIMIT_MAX", "20")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := Load()
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 20, cfg.RateLimitMax)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, int32(10), cfg.DBMaxConns, "bad value falls back to default")
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p",
		DBName: "authdb", DBSSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5432/authdb?sslmode=disable", cfg.PostgresDSN())
}

func TestCORSOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "https://a.example.com, https://b.example.com ,"}
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins())

	cfg.CORSAllowedOrigins = ""
	assert.Empty(t, cfg.CORSOrigins())
}

func TestLoginEventEnabled(t *testing.T) {
	cfg := &Config{LoginEventBusinesses: "*"}
	assert.True(t, cfg.LoginEventEnabled("acme"))

	cfg.LoginEventBusinesses = ""
	assert.False(t, cfg.LoginEventEnabled("acme"))

	cfg.LoginEventBusinesses = "acme, globex"
	assert.True(t, cfg.LoginEventEnabled("acme"))
	assert.True(t, cfg.LoginEventEnabled("GLOBEX"), "matching is case-insensitive")
	assert.False(t, cfg.LoginEventEnabled("initech"))
}
