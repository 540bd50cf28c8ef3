// Package strategy routes intercepted requests to a caching strategy and
// runs it against the cache store and the network.
package strategy

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/cache"
)

// Kind names a caching algorithm.
type Kind string

const (
	CacheFirst           Kind = "cache-first"
	NetworkFirst         Kind = "network-first"
	StaleWhileRevalidate Kind = "stale-while-revalidate"
	NetworkOnly          Kind = "network-only"
	CacheOnly            Kind = "cache-only"
)

// Config binds a URL pattern to a strategy.
type Config struct {
	// Name labels the rule in logs and metrics.
	Name string

	// Pattern is matched against the full request URL and against its path.
	Pattern *regexp.Regexp

	Kind Kind
	Role cache.Role

	// MaxAge is the freshness window; zero means entries never expire.
	MaxAge time.Duration

	// MaxEntries bounds the namespace; zero means unbounded.
	MaxEntries int

	// NetworkTimeout bounds the network race of NetworkFirst; zero waits for
	// the network as long as the caller's context allows.
	NetworkTimeout time.Duration
}

// Matches reports whether the config applies to req.
func (c Config) Matches(req *http.Request) bool {
	if c.Pattern == nil || req == nil || req.URL == nil {
		return false
	}
	return c.Pattern.MatchString(req.URL.String()) || c.Pattern.MatchString(req.URL.Path)
}

// Registry is an ordered list of strategy configs. The first match wins.
type Registry struct {
	configs []Config
}

// NewRegistry validates and stores configs in declaration order.
func NewRegistry(configs ...Config) (*Registry, error) {
	for i, c := range configs {
		if c.Pattern == nil {
			return nil, fmt.Errorf("config %d (%s): pattern is required", i, c.Name)
		}
		switch c.Kind {
		case CacheFirst, NetworkFirst, StaleWhileRevalidate, NetworkOnly, CacheOnly:
		default:
			return nil, fmt.Errorf("config %d (%s): unknown strategy kind %q", i, c.Name, c.Kind)
		}
		if _, ok := cache.ParseRole(string(c.Role)); !ok && c.Kind != NetworkOnly {
			return nil, fmt.Errorf("config %d (%s): unknown namespace role %q", i, c.Name, c.Role)
		}
		if c.MaxAge < 0 || c.MaxEntries < 0 || c.NetworkTimeout < 0 {
			return nil, fmt.Errorf("config %d (%s): limits must be >= 0", i, c.Name)
		}
	}
	return &Registry{configs: append([]Config(nil), configs...)}, nil
}

// Match returns the first config whose pattern matches req.
// Callers must bypass caching entirely when ok is false.
func (r *Registry) Match(req *http.Request) (Config, bool) {
	for _, c := range r.configs {
		if c.Matches(req) {
			return c, true
		}
	}
	return Config{}, false
}

// ForRole returns the first config that writes to role.
func (r *Registry) ForRole(role cache.Role) (Config, bool) {
	for _, c := range r.configs {
		if c.Role == role {
			return c, true
		}
	}
	return Config{}, false
}

// Configs returns a copy of the registered configs.
func (r *Registry) Configs() []Config {
	return append([]Config(nil), r.configs...)
}
