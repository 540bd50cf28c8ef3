package strategy

import (
	"regexp"
	"time"

	"github.com/Sternrassler/offline-runtime/pkg/cache"
)

// Default limits of the built-in strategy table.
const (
	DefaultNetworkTimeout = 3000 * time.Millisecond

	StaticMaxAge     = 30 * 24 * time.Hour
	StaticMaxEntries = 100

	APIMaxAge     = 5 * time.Minute
	APIMaxEntries = 50

	DynamicMaxAge     = 24 * time.Hour
	DynamicMaxEntries = 25

	ImagesMaxAge     = 7 * 24 * time.Hour
	ImagesMaxEntries = 200

	ExternalMaxAge     = 24 * time.Hour
	ExternalMaxEntries = 30
)

// Patterns of the built-in strategy table.
var (
	// Style, script, font, icon and common image assets. Listed first, so
	// png, jpeg and svg files land in the static namespace.
	StaticPattern = regexp.MustCompile(`(?i)(\.(css|js|mjs|woff2?|ttf|otf|eot|ico|png|jpe?g|svg)$|^/icons/)`)

	APIPattern = regexp.MustCompile(`^/api/`)

	DynamicPattern = regexp.MustCompile(`^/(about|projects|tools|contact)?/?$`)

	// Images the static rule does not list.
	ImagesPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|webp|avif)$`)

	ExternalPattern = regexp.MustCompile(`^https://(fonts\.googleapis\.com|fonts\.gstatic\.com|images\.unsplash\.com|cdn\.jsdelivr\.net)/`)
)

// DefaultConfigs returns the built-in strategy table in match order.
func DefaultConfigs() []Config {
	return []Config{
		{
			Name:       "static",
			Pattern:    StaticPattern,
			Kind:       CacheFirst,
			Role:       cache.RoleStatic,
			MaxAge:     StaticMaxAge,
			MaxEntries: StaticMaxEntries,
		},
		{
			Name:           "api",
			Pattern:        APIPattern,
			Kind:           NetworkFirst,
			Role:           cache.RoleAPI,
			MaxAge:         APIMaxAge,
			MaxEntries:     APIMaxEntries,
			NetworkTimeout: DefaultNetworkTimeout,
		},
		{
			Name:           "dynamic",
			Pattern:        DynamicPattern,
			Kind:           NetworkFirst,
			Role:           cache.RoleDynamic,
			MaxAge:         DynamicMaxAge,
			MaxEntries:     DynamicMaxEntries,
			NetworkTimeout: DefaultNetworkTimeout,
		},
		{
			Name:       "images",
			Pattern:    ImagesPattern,
			Kind:       CacheFirst,
			Role:       cache.RoleImages,
			MaxAge:     ImagesMaxAge,
			MaxEntries: ImagesMaxEntries,
		},
		{
			Name:       "external",
			Pattern:    ExternalPattern,
			Kind:       StaleWhileRevalidate,
			Role:       cache.RoleExternal,
			MaxAge:     ExternalMaxAge,
			MaxEntries: ExternalMaxEntries,
		},
	}
}

// DefaultRegistry returns a registry holding DefaultConfigs.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultConfigs()...)
	if err != nil {
		panic(err)
	}
	return r
}
