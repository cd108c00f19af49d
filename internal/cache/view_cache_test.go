package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bankcards/cardledger/internal/logging"
)

type sample struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*ViewCache[sample], *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewViewCache[sample](client, "sample:", time.Minute, logging.Discard()), mr
}

func TestViewCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Set(ctx, "a", sample{ID: "a", Count: 3})
	got, ok := c.Get(ctx, "a")
	if !ok || got.Count != 3 {
		t.Fatalf("expected cached value, got %+v ok=%v", got, ok)
	}
	if !mr.Exists("sample:a") {
		t.Fatalf("expected prefixed key in redis")
	}

	c.Delete(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestViewCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "b", sample{ID: "b"})
	mr.FastForward(2 * time.Minute)
	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestViewCacheIgnoresCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t)
	if err := mr.Set("sample:c", "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := c.Get(context.Background(), "c"); ok {
		t.Fatalf("expected corrupt entry to read as miss")
	}
}

func TestViewCacheFillSkipsAfterInvalidation(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	gen, ok := c.Generation(ctx, "d")
	if !ok {
		t.Fatalf("expected readable generation")
	}
	c.Delete(ctx, "d")
	c.Fill(ctx, "d", sample{ID: "d", Count: 1}, gen)
	if mr.Exists("sample:d") {
		t.Fatalf("fill computed before delete must not be stored")
	}

	gen, _ = c.Generation(ctx, "d")
	c.Fill(ctx, "d", sample{ID: "d", Count: 2}, gen)
	got, ok := c.Get(ctx, "d")
	if !ok || got.Count != 2 {
		t.Fatalf("expected fresh fill to be stored, got %+v ok=%v", got, ok)
	}
}
