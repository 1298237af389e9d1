package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func TestDefaults(t *testing.T) {
	t.Setenv("FOLIO_AUTH_SECRET", testSecret)
	t.Chdir(t.TempDir())

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "embedded", cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "folio_session", cfg.Auth.Cookie)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, int64(5), cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Gate.DenyUnmatched)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "folio.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  addr: ":9000"
store:
  driver: embedded
  in_memory: true
auth:
  secret: "`+testSecret+`"
ratelimit:
  limit: 10
  window: 30s
gate:
  trusted_proxies: ["10.0.0.0/8"]
`), 0o644))

	t.Setenv("FOLIO_RATELIMIT_LIMIT", "3")

	cfg, err := Load(New(file))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, int64(3), cfg.RateLimit.Limit, "env overrides file")
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Gate.TrustedProxies)
}

func validConfig() Config {
	return Config{
		Server:    Server{Addr: ":8080"},
		Store:     Store{Driver: "embedded", InMemory: true},
		Auth:      Auth{Secret: testSecret, TTL: time.Hour},
		RateLimit: RateLimit{Backend: "memory", Limit: 5, Window: time.Minute},
		Log:       Log{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"bad driver", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"mongo without uri", func(c *Config) { c.Store.Driver = "mongo"; c.RateLimit.Backend = "memory" }, "store.mongo_uri"},
		{"embedded without path", func(c *Config) { c.Store.InMemory = false }, "store.path"},
		{"short secret", func(c *Config) { c.Auth.Secret = "short" }, "auth.secret"},
		{"badger needs embedded", func(c *Config) {
			c.Store = Store{Driver: "mongo", MongoURI: "mongodb://x", Database: "d"}
			c.RateLimit.Backend = "badger"
		}, "ratelimit.backend badger"},
		{"redis without addr", func(c *Config) { c.RateLimit.Backend = "redis" }, "ratelimit.redis_addr"},
		{"bad limit", func(c *Config) { c.RateLimit.Limit = 0 }, "ratelimit.limit"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
