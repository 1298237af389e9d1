// Package config loads service configuration from defaults, an optional
// config file and FOLIO_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FOLIO_SERVER_ADDR.
const EnvPrefix = "FOLIO"

// Config is the full service configuration.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Store     Store     `mapstructure:"store"`
	Auth      Auth      `mapstructure:"auth"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Gate      Gate      `mapstructure:"gate"`
	Log       Log       `mapstructure:"log"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Store selects and configures the document store driver.
type Store struct {
	Driver   string        `mapstructure:"driver"` // embedded | mongo
	Path     string        `mapstructure:"path"`
	InMemory bool          `mapstructure:"in_memory"`
	MongoURI string        `mapstructure:"mongo_uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Auth struct {
	Secret            string        `mapstructure:"secret"`
	Issuer            string        `mapstructure:"issuer"`
	Cookie            string        `mapstructure:"cookie"`
	TTL               time.Duration `mapstructure:"ttl"`
	AdminUser         string        `mapstructure:"admin_user"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
}

// RateLimit configures the login limiter.
type RateLimit struct {
	Backend   string        `mapstructure:"backend"` // memory | badger | redis
	Limit     int64         `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

type Gate struct {
	DenyUnmatched  bool     `mapstructure:"deny_unmatched"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "embedded")
	v.SetDefault("store.path", "./data/folio")
	v.SetDefault("store.in_memory", false)
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.database", "folio")
	v.SetDefault("store.timeout", 10*time.Second)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "folio")
	v.SetDefault("auth.cookie", "folio_session")
	v.SetDefault("auth.ttl", 24*time.Hour)
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.limit", 5)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.redis_addr", "localhost:6379")

	v.SetDefault("gate.deny_unmatched", false)
	v.SetDefault("gate.trusted_proxies", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// New returns a viper instance with defaults, environment binding and
// config file discovery set up. file, when non-empty, replaces discovery.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("folio")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.folio")
		v.AddConfigPath("/etc/folio")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (a missing discovered file is fine) and
// decodes and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	switch c.Store.Driver {
	case "embedded":
		if !c.Store.InMemory && c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required unless store.in_memory is set"))
		}
	case "mongo":
		if c.Store.MongoURI == "" || c.Store.Database == "" {
			errs = append(errs, errors.New("store.mongo_uri and store.database are required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be embedded or mongo, got %q", c.Store.Driver))
	}

	if len(c.Auth.Secret) < 16 {
		errs = append(errs, errors.New("auth.secret must be at least 16 characters"))
	}
	if c.Auth.TTL <= 0 {
		errs = append(errs, errors.New("auth.ttl must be positive"))
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "badger":
		if c.Store.Driver != "embedded" {
			errs = append(errs, errors.New("ratelimit.backend badger requires store.driver embedded"))
		}
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			errs = append(errs, errors.New("ratelimit.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ratelimit.backend must be memory, badger or redis, got %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Limit < 1 {
		errs = append(errs, errors.New("ratelimit.limit must be at least 1"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
