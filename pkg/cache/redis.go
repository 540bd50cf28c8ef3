package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix prefixes every Redis key written by RedisStore.
const DefaultRedisPrefix = "offline"

// RedisStore keeps each namespace in one Redis hash (field = request key,
// value = JSON entry) and tracks namespace names in a set.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) namesKey() string {
	return s.prefix + ":namespaces"
}

func (s *RedisStore) hashKey(name string) string {
	return s.prefix + ":ns:" + name
}

// Open registers the namespace name and returns a handle on it.
func (s *RedisStore) Open(ctx context.Context, name string) (Namespace, error) {
	if err := s.redis.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis sadd: %w", err)
	}
	return &redisNamespace{store: s, name: name}, nil
}

// Names lists registered namespaces sorted by name.
func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the namespace hash and its registration in one transaction.
func (s *RedisStore) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.namesKey(), name)
		pipe.Del(ctx, s.hashKey(name))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete_namespace").Inc()
		return false, fmt.Errorf("redis delete namespace: %w", err)
	}
	return removed.Val() > 0, nil
}

type redisNamespace struct {
	store *RedisStore
	name  string
}

func (n *redisNamespace) Name() string { return n.name }

func (n *redisNamespace) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, err := n.store.redis.HGet(ctx, n.store.hashKey(n.name), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

// Put stores the entry and re-registers the namespace, so a write racing a
// namespace deletion leaves a consistent, listed namespace behind.
func (n *redisNamespace) Put(ctx context.Context, key string, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = n.store.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, n.store.namesKey(), n.name)
		pipe.HSet(ctx, n.store.hashKey(n.name), key, data)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (n *redisNamespace) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := n.store.redis.HDel(ctx, n.store.hashKey(n.name), key).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return removed > 0, nil
}

// Keys returns the namespace's keys sorted lexically; Redis hashes carry no
// insertion order.
func (n *redisNamespace) Keys(ctx context.Context) ([]string, error) {
	keys, err := n.store.redis.HKeys(ctx, n.store.hashKey(n.name)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
