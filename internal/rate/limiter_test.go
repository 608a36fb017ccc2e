package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestWindowHitAndExpire(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	w := NewWindow(rdb, 30*time.Second)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := w.Hit(ctx, "k", 2); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
	}
	if err := w.Hit(ctx, "k", 2); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n, _ := w.Count(ctx, "k"); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	if ttl := mr.TTL("k"); ttl != 30*time.Second {
		t.Fatalf("ttl = %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if n, _ := w.Count(ctx, "k"); n != 0 {
		t.Fatalf("count after expiry = %d", n)
	}
	if err := w.Hit(ctx, "k", 2); err != nil {
		t.Fatalf("expected a fresh window, got %v", err)
	}
	if err := w.Clear(ctx, "k"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("key survived Clear")
	}
}

func TestWindowRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	w := NewWindow(rdb, time.Second)
	if err := w.Hit(context.Background(), "k", 1); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
