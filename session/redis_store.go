package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxReplaceRetries = 8

// RedisStore keeps the record under one Redis key so several processes on the
// same profile share a login.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
	codec Codec
	now   func() time.Time
}

// NewRedisStore returns a store keyed by prefix and profile. ttl <= 0 keeps the
// record until Clear. A nil codec selects PlainCodec.
func NewRedisStore(rdb redis.UniversalClient, prefix, profile string, ttl time.Duration, codec Codec) *RedisStore {
	if prefix == "" {
		prefix = "cuenta:sess"
	}
	if profile == "" {
		profile = "default"
	}
	if codec == nil {
		codec = PlainCodec{}
	}
	return &RedisStore{
		redis: rdb,
		key:   prefix + ":" + profile,
		ttl:   ttl,
		codec: codec,
		now:   time.Now,
	}
}

func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNoSession
		}
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.codec.Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, r Record) error {
	data, err := s.codec.Encode(r)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, s.expiration()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Replace applies the patch inside an optimistic WATCH transaction, retrying
// when another writer touched the key in between.
func (s *RedisStore) Replace(ctx context.Context, p Patch) (Record, error) {
	var out Record
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, s.key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNoSession
			}
			return err
		}
		current, err := s.codec.Decode(data)
		if err != nil {
			return err
		}
		next := applyPatch(current, p, s.now())
		encoded, err := s.codec.Encode(next)
		if err != nil {
			return err
		}
		ttl := tx.PTTL(ctx, s.key).Val()
		if ttl <= 0 {
			ttl = s.expiration()
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, encoded, ttl)
			return nil
		})
		if err == nil {
			out = next
		}
		return err
	}

	for i := 0; i < maxReplaceRetries; i++ {
		err := s.redis.Watch(ctx, txf, s.key)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNoSession), errors.Is(err, ErrCorruptRecord):
			return Record{}, err
		default:
			return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return Record{}, fmt.Errorf("%w: replace contention", ErrRedisUnavailable)
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) expiration() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl
}
