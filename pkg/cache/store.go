package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in a namespace
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the platform key-value cache: a set of named namespaces.
// Implementations must make Put and Delete atomic per key. Nothing else is
// atomic; callers must tolerate interleaving with other requests.
type Store interface {
	// Open returns the namespace with the given name, creating it if needed.
	Open(ctx context.Context, name string) (Namespace, error)

	// Names lists every namespace currently present.
	Names(ctx context.Context) ([]string, error)

	// Delete removes a namespace and all its entries.
	// It reports whether the namespace existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Namespace is a handle on one namespace of a Store.
type Namespace interface {
	Name() string

	// Get returns ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Put(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}
