package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHZ_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, "authorization-service", cfg.JWTIssuer)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "bcrypt", cfg.PasswordHash)
	assert.InDelta(t, 5.0, cfg.LoginRate, 0.001)
	assert.Equal(t, 10, cfg.LoginBurst)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTHZ_JWT_SECRET", testSecret)
	t.Setenv("AUTHZ_ENV", "production")
	t.Setenv("AUTHZ_STORE", "memory")
	t.Setenv("AUTHZ_JWT_TTL", "15m")
	t.Setenv("AUTHZ_HTTP_ADDR", ":9999")
	t.Setenv("AUTHZ_LOGIN_BURST", "3")
	t.Setenv("AUTHZ_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AUTHZ_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.LoginBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"short secret":  {"AUTHZ_JWT_SECRET": "short"},
		"unknown store": {"AUTHZ_JWT_SECRET": testSecret, "AUTHZ_STORE": "redis"},
		"negative ttl":  {"AUTHZ_JWT_SECRET": testSecret, "AUTHZ_JWT_TTL": "-1m"},
		"zero burst":    {"AUTHZ_JWT_SECRET": testSecret, "AUTHZ_LOGIN_BURST": "0"},
		"bad proxy":     {"AUTHZ_JWT_SECRET": testSecret, "AUTHZ_TRUSTED_PROXIES": "proxy.internal"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
