// Package cache provides the namespaced request/response store of the
// offline runtime.
//
// A Store holds named namespaces; each namespace maps request keys
// ("GET <url>") to response snapshots. Two backends are provided:
//
//   - MemoryStore: in-process maps, used by tests and single-node setups
//   - RedisStore: one Redis hash per namespace, shared between processes
//
// # Basic Usage
//
//	store := cache.NewRedisStore(redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	}), "offline")
//
//	names := cache.Namespaces{Prefix: "offline-runtime", Version: "v1.0.0"}
//	ns, err := store.Open(ctx, names.Name(cache.RoleAPI))
//	if err != nil {
//		return err
//	}
//
//	entry, err := ns.Get(ctx, cache.RequestKey(req))
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - go to the network
//	}
//
// # Freshness and Eviction
//
// Every entry carries an X-Cache-Date header written when it was stored.
// Expiry is checked at read time only (CacheEntry.IsExpired); expired entries
// stay in place and remain usable as stale fallbacks. Capacity is enforced by
// Trim after each write, deleting the entries with the oldest marker first.
// Entries without a marker count as stored at the Unix epoch.
//
// # Metrics
//
//   - offline_cache_hits_total{namespace,result} - Entries served
//   - offline_cache_misses_total{namespace} - Lookups without an entry
//   - offline_cache_writes_total{namespace} - Entries written
//   - offline_cache_evictions_total{namespace} - Entries trimmed by capacity
//   - offline_cache_errors_total{operation} - Store operation errors
package cache
