package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix prefixes every Redis key written by RedisStore.
const DefaultRedisPrefix = "offline:sync"

// removeScript deletes item fields and unregisters the queue when its hash is
// left empty, in one step so a concurrent Append cannot be orphaned.
// KEYS: queue hash, queues set. ARGV: queue name, item IDs.
var removeScript = redis.NewScript(`
local removed = redis.call('HDEL', KEYS[1], unpack(ARGV, 2))
if redis.call('HLEN', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[2], ARGV[1])
end
return removed
`)

// RedisStore keeps each queue in one Redis hash (field = item ID, value =
// JSON item) and tracks non-empty queues in a set.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed queue store. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{redis: redisClient, prefix: prefix}
}

func (s *RedisStore) queuesKey() string {
	return s.prefix + ":queues"
}

func (s *RedisStore) queueKey(queue string) string {
	return s.prefix + ":queue:" + queue
}

func (s *RedisStore) Append(ctx context.Context, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	var added *redis.BoolCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.HSetNX(ctx, s.queueKey(item.Queue), item.ID, data)
		pipe.SAdd(ctx, s.queuesKey(), item.Queue)
		return nil
	})
	if err != nil {
		storeErrors.WithLabelValues("append").Inc()
		return fmt.Errorf("redis append: %w", err)
	}
	if !added.Val() {
		return ErrDuplicateItem
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, queue string) ([]Item, error) {
	fields, err := s.redis.HGetAll(ctx, s.queueKey(queue)).Result()
	if err != nil {
		storeErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	items := make([]Item, 0, len(fields))
	for id, raw := range fields {
		var it Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			storeErrors.WithLabelValues("list").Inc()
			return nil, fmt.Errorf("unmarshal item %s: %w", id, err)
		}
		items = append(items, it)
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].EnqueuedAt.Equal(items[j].EnqueuedAt) {
			return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *RedisStore) Remove(ctx context.Context, queue string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, queue)
	for _, id := range ids {
		args = append(args, id)
	}

	removed, err := removeScript.Run(ctx, s.redis, []string{s.queueKey(queue), s.queuesKey()}, args...).Int()
	if err != nil {
		storeErrors.WithLabelValues("remove").Inc()
		return 0, fmt.Errorf("redis remove: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) Queues(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, s.queuesKey()).Result()
	if err != nil {
		storeErrors.WithLabelValues("queues").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

var _ Store = (*RedisStore)(nil)
