package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendSQLite = "sqlite"
)

// config is read from OFFLINE_* environment variables.
type config struct {
	ListenAddr string `env:"OFFLINE_LISTEN_ADDR" envDefault:":8080"`
	OriginURL  string `env:"OFFLINE_ORIGIN_URL,required"`

	Prefix  string `env:"OFFLINE_PREFIX" envDefault:"offline-runtime"`
	Version string `env:"OFFLINE_VERSION" envDefault:"v1"`

	// CacheStore is memory or redis.
	CacheStore string `env:"OFFLINE_CACHE_STORE" envDefault:"memory"`
	// QueueStore is memory, redis or sqlite.
	QueueStore string `env:"OFFLINE_QUEUE_STORE" envDefault:"memory"`
	RedisAddr  string `env:"OFFLINE_REDIS_ADDR" envDefault:"localhost:6379"`
	SQLitePath string `env:"OFFLINE_SQLITE_PATH" envDefault:"offline-sync.db"`

	UserAgent       string        `env:"OFFLINE_USER_AGENT" envDefault:"offline-runtime/1.0"`
	FetchTimeout    time.Duration `env:"OFFLINE_FETCH_TIMEOUT" envDefault:"30s"`
	InstallOnStart  bool          `env:"OFFLINE_INSTALL_ON_START" envDefault:"true"`
	SyncMaxAttempts int           `env:"OFFLINE_SYNC_MAX_ATTEMPTS" envDefault:"5"`
	ShutdownTimeout time.Duration `env:"OFFLINE_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"OFFLINE_LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"OFFLINE_LOG_PRETTY" envDefault:"false"`
}

// loadConfig parses the environment (or opts.Environment) and validates the
// result.
func loadConfig(opts env.Options) (config, error) {
	var cfg config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	u, err := url.Parse(c.OriginURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("OFFLINE_ORIGIN_URL must be an absolute URL (got %q)", c.OriginURL)
	}
	if c.Prefix == "" || c.Version == "" {
		return fmt.Errorf("OFFLINE_PREFIX and OFFLINE_VERSION must not be empty")
	}
	switch c.CacheStore {
	case backendMemory, backendRedis:
	default:
		return fmt.Errorf("OFFLINE_CACHE_STORE must be memory or redis (got %q)", c.CacheStore)
	}
	switch c.QueueStore {
	case backendMemory, backendRedis, backendSQLite:
	default:
		return fmt.Errorf("OFFLINE_QUEUE_STORE must be memory, redis or sqlite (got %q)", c.QueueStore)
	}
	if c.SyncMaxAttempts < 1 {
		return fmt.Errorf("OFFLINE_SYNC_MAX_ATTEMPTS must be >= 1 (got %d)", c.SyncMaxAttempts)
	}
	return nil
}

func (c config) origin() *url.URL {
	u, _ := url.Parse(c.OriginURL)
	return u
}

func (c config) usesRedis() bool {
	return c.CacheStore == backendRedis || c.QueueStore == backendRedis
}
