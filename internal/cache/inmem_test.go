package cache

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryCacheGetSetMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewInMemoryCache()

	var dst string
	found, err := c.Get(ctx, "missing", &dst)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("expected miss")
	}

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	found, err = c.Get(ctx, "k", &dst)
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if dst != "v" {
		t.Errorf("got %q, want %q", dst, "v")
	}
}

func TestInMemoryCacheTTLExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var dst string
	found, err := c.Get(ctx, "k", &dst)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Errorf("expected key to have expired")
	}
}

func TestInMemoryCacheHash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.HashSet(ctx, "orders:active", "id1", map[string]string{"status": "open"}); err != nil {
		t.Fatalf("HashSet: %v", err)
	}

	var dst map[string]string
	found, err := c.HashGet(ctx, "orders:active", "id1", &dst)
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if dst["status"] != "open" {
		t.Errorf("got %v", dst)
	}

	keys, err := c.HashKeys(ctx, "orders:active")
	if err != nil || len(keys) != 1 || keys[0] != "id1" {
		t.Errorf("unexpected hash keys: %v, err=%v", keys, err)
	}

	if err := c.HashDelete(ctx, "orders:active", "id1"); err != nil {
		t.Fatalf("HashDelete: %v", err)
	}
	found, _ = c.HashGet(ctx, "orders:active", "id1", &dst)
	if found {
		t.Errorf("expected field removed")
	}
}

func TestInMemoryCacheSortedSetRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.SortedSetAdd(ctx, "candles", 100, "a"); err != nil {
		t.Fatalf("SortedSetAdd: %v", err)
	}
	if err := c.SortedSetAdd(ctx, "candles", 200, "b"); err != nil {
		t.Fatalf("SortedSetAdd: %v", err)
	}
	if err := c.SortedSetAdd(ctx, "candles", 300, "c"); err != nil {
		t.Fatalf("SortedSetAdd: %v", err)
	}

	members, err := c.SortedSetRange(ctx, "candles", 150, 300)
	if err != nil {
		t.Fatalf("SortedSetRange: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d: %v", len(members), members)
	}
}

func TestInMemoryCacheKeysGlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewInMemoryCache()

	_ = c.Set(ctx, "order:hyperliquid:btc-usd:1", "x", 0)
	_ = c.Set(ctx, "order:hyperliquid:btc-usd:2", "x", 0)
	_ = c.Set(ctx, "signal:hyperliquid:btc-usd:1", "x", 0)

	keys, err := c.Keys(ctx, "order:hyperliquid:btc-usd:*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %d: %v", len(keys), keys)
	}
}
