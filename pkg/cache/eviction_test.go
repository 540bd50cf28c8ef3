package cache

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"testing"
	"time"
)

func TestTrim_KeepsMostRecentlyStored(t *testing.T) {
	ctx := context.Background()
	ns, _ := NewMemoryStore().Open(ctx, "offline-runtime-api-v1")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"a", "b", "c"} {
		if err := ns.Put(ctx, key, newEntry(key, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
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

func TestTrim_OrdersByStoredAtNotInsertion(t *testing.T) {
	ctx := context.Background()
	ns, _ := NewMemoryStore().Open(ctx, "ns")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = ns.Put(ctx, "newest", newEntry("newest", base.Add(3*time.Hour)))
	_ = ns.Put(ctx, "oldest", newEntry("oldest", base))
	_ = ns.Put(ctx, "middle", newEntry("middle", base.Add(time.Hour)))

	deleted, err := Trim(ctx, ns, 1)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	keys, _ := ns.Keys(ctx)
	if fmt.Sprint(keys) != "[newest]" {
		t.Errorf("Keys() = %v, want [newest]", keys)
	}
}

func TestTrim_UnmarkedEntriesGoFirst(t *testing.T) {
	ctx := context.Background()
	ns, _ := NewMemoryStore().Open(ctx, "ns")

	_ = ns.Put(ctx, "marked", newEntry("marked", time.Now()))
	_ = ns.Put(ctx, "unmarked", &CacheEntry{StatusCode: http.StatusOK, Headers: http.Header{}})

	if _, err := Trim(ctx, ns, 1); err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	keys, _ := ns.Keys(ctx)
	if fmt.Sprint(keys) != "[marked]" {
		t.Errorf("Keys() = %v, want [marked]", keys)
	}
}

func TestTrim_ManyInserts(t *testing.T) {
	ctx := context.Background()
	ns, _ := NewMemoryStore().Open(ctx, "ns")

	const total, limit = 40, 25
	base := time.Now()
	for i := 0; i < total; i++ {
		key := fmt.Sprintf("k%02d", i)
		_ = ns.Put(ctx, key, newEntry(key, base.Add(time.Duration(i)*time.Millisecond)))
		if _, err := Trim(ctx, ns, limit); err != nil {
			t.Fatalf("Trim failed: %v", err)
		}
	}

	keys, _ := ns.Keys(ctx)
	if len(keys) != limit {
		t.Fatalf("len(Keys()) = %d, want %d", len(keys), limit)
	}
	sort.Strings(keys)
	if keys[0] != fmt.Sprintf("k%02d", total-limit) {
		t.Errorf("oldest surviving key = %s, want k%02d", keys[0], total-limit)
	}
}

func TestTrim_Disabled(t *testing.T) {
	ctx := context.Background()
	ns, _ := NewMemoryStore().Open(ctx, "ns")
	_ = ns.Put(ctx, "a", newEntry("a", time.Now()))
	_ = ns.Put(ctx, "b", newEntry("b", time.Now()))

	deleted, err := Trim(ctx, ns, 0)
	if err != nil || deleted != 0 {
		t.Errorf("Trim(0) = %d, %v; want 0, nil", deleted, err)
	}
}
