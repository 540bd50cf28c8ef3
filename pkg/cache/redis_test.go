package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// Tests are skipped when no local Redis is reachable; the integration suite
// runs the same store against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	// Ping to check connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil, "")
}

func TestRedisStore_PutGet(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), "test")
	ctx := context.Background()

	ns, err := store.Open(ctx, "offline-runtime-api-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := ns.Get(ctx, "GET /missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get missing = %v, want ErrCacheMiss", err)
	}

	stored := time.Now()
	if err := ns.Put(ctx, "GET /a", newEntry("/a", stored)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := ns.Get(ctx, "GET /a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Body) != "/a" {
		t.Errorf("Body = %q, want /a", got.Body)
	}
	if !got.StoredAt().Equal(stored) {
		t.Errorf("StoredAt() = %v, want %v", got.StoredAt(), stored)
	}
}

func TestRedisStore_NamespaceLifecycle(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), "test")
	ctx := context.Background()

	for _, name := range []string{"ns-b", "ns-a"} {
		ns, err := store.Open(ctx, name)
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", name, err)
		}
		_ = ns.Put(ctx, "GET /x", newEntry("/x", time.Now()))
	}

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if fmt.Sprint(names) != "[ns-a ns-b]" {
		t.Errorf("Names() = %v", names)
	}

	existed, err := store.Delete(ctx, "ns-a")
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}

	ns, _ := store.Open(ctx, "ns-a")
	keys, _ := ns.Keys(ctx)
	if len(keys) != 0 {
		t.Errorf("deleted namespace still has keys %v", keys)
	}
}

func TestRedisStore_Trim(t *testing.T) {
	store := NewRedisStore(setupTestRedis(t), "test")
	ctx := context.Background()
	ns, _ := store.Open(ctx, "ns")

	base := time.Now()
	for i, key := range []string{"a", "b", "c"} {
		_ = ns.Put(ctx, key, newEntry(key, base.Add(time.Duration(i)*time.Second)))
		if _, err := Trim(ctx, ns, 2); err != nil {
			t.Fatalf("Trim failed: %v", err)
		}
	}

	keys, _ := ns.Keys(ctx)
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[b c]" {
		t.Errorf("Keys() = %v, want [b c]", keys)
	}
}
