package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a Redis fixed-window counter. Each key gets its own window that
// starts on the first hit and lasts Length.
type Window struct {
	redis  redis.UniversalClient
	length time.Duration
}

// NewWindow creates a [Window] backed by the given Redis client.
func NewWindow(redisClient redis.UniversalClient, length time.Duration) *Window {
	return &Window{
		redis:  redisClient,
		length: length,
	}
}

// Hit counts one event for key and returns ErrRateLimited once the count
// exceeds max within the current window.
func (w *Window) Hit(ctx context.Context, key string, max int) error {
	count, err := w.incrementWithTTL(ctx, key)
	if err != nil {
		return err
	}
	if count > int64(max) {
		return ErrRateLimited
	}
	return nil
}

// Count returns the current count for key. Missing keys count as zero.
func (w *Window) Count(ctx context.Context, key string) (int, error) {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Clear drops the counters for keys.
func (w *Window) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (w *Window) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.length).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
