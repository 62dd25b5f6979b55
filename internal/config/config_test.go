package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 3*time.Second, cfg.DBTimeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, devSecret, cfg.JWTSecret)
	assert.Equal(t, float64(10), cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, int64(1048576), cfg.MaxBodyBytes)
	assert.False(t, cfg.EnableHSTS)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.IsDev())
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"APP_ENV":              "prod",
		"JWT_SECRET":           "s3cret",
		"STORE_DRIVER":         "memory",
		"DB_TIMEOUT":           "750ms",
		"CORS_ALLOWED_ORIGINS": "https://a.example, ,https://b.example",
		"ENABLE_HSTS":          "true",
		"LOG_LEVEL":            "debug",
		"RATE_LIMIT_RPS":       "2.5",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.DBTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.EnableHSTS)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestFromLookup_MalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DB_TIMEOUT", "soon"},
		{"TOKEN_TTL", "-1h"},
		{"RATE_LIMIT_RPS", "fast"},
		{"RATE_LIMIT_BURST", "0"},
		{"MAX_BODY_BYTES", "1MB"},
		{"ENABLE_HSTS", "maybe"},
		{"LOG_LEVEL", "loud"},
		{"STORE_DRIVER", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestFromLookup_SecretRequiredOutsideDev(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{"APP_ENV": "prod"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("DB_DSN=from_file\nAPP_ADDR=:9090\n"), 0o644))

	t.Setenv("DB_DSN", "from_env")
	t.Setenv("APP_ADDR", "")
	require.NoError(t, os.Unsetenv("APP_ADDR"))
	t.Chdir(tmp)

	LoadEnvFiles()

	assert.Equal(t, "from_env", os.Getenv("DB_DSN"))
	assert.Equal(t, ":9090", os.Getenv("APP_ADDR"))
}
