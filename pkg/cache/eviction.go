package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Trim enforces a capacity bound on a namespace. When the namespace holds
// more than maxEntries keys, the entries with the oldest stored-at marker are
// deleted until exactly maxEntries remain. It returns the number of deleted
// entries. A non-positive maxEntries disables trimming.
//
// The key count is read here, not passed in: concurrent writers may have
// changed the namespace since the caller's own Put.
func Trim(ctx context.Context, ns Namespace, maxEntries int) (int, error) {
	if maxEntries <= 0 {
		return 0, nil
	}

	keys, err := ns.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	if len(keys) <= maxEntries {
		return 0, nil
	}

	type aged struct {
		key   string
		entry *CacheEntry
	}
	entries := make([]aged, 0, len(keys))
	for _, key := range keys {
		entry, err := ns.Get(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			// Deleted by a concurrent request.
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("load %q: %w", key, err)
		}
		entries = append(entries, aged{key: key, entry: entry})
	}

	excess := len(entries) - maxEntries
	if excess <= 0 {
		return 0, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].entry.StoredAt().Before(entries[j].entry.StoredAt())
	})

	deleted := 0
	for _, victim := range entries[:excess] {
		ok, err := ns.Delete(ctx, victim.key)
		if err != nil {
			return deleted, fmt.Errorf("evict %q: %w", victim.key, err)
		}
		if ok {
			deleted++
		}
	}

	if deleted > 0 {
		CacheEvictions.WithLabelValues(ns.Name()).Add(float64(deleted))
	}
	return deleted, nil
}
