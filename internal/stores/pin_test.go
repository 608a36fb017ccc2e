package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newPinStore(t *testing.T, maxAttempts int) (*miniredis.Miniredis, *PinStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return mr, NewPinStore(rdb, "", maxAttempts)
}

func TestPinStoreConsumeOnce(t *testing.T) {
	_, s := newPinStore(t, 0)
	ctx := context.Background()
	hash := sha256.Sum256([]byte("123456"))

	if err := s.Save(ctx, &PinRecord{Email: "ana@example.com", Hash: hash}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Consume(ctx, sha256.Sum256([]byte("000000"))); !errors.Is(err, ErrPinMismatch) {
		t.Fatalf("expected ErrPinMismatch, got %v", err)
	}
	rec, err := s.Consume(ctx, hash)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if rec.Email != "ana@example.com" || rec.Attempts != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := s.Consume(ctx, hash); !errors.Is(err, ErrPinNotFound) {
		t.Fatalf("second consume must fail, got %v", err)
	}
}

func TestPinStoreReplaceAndExpire(t *testing.T) {
	mr, s := newPinStore(t, 0)
	ctx := context.Background()
	first := sha256.Sum256([]byte("111111"))
	second := sha256.Sum256([]byte("222222"))

	_ = s.Save(ctx, &PinRecord{Email: "a@example.com", Hash: first}, time.Minute)
	_ = s.Save(ctx, &PinRecord{Email: "a@example.com", Hash: second}, time.Minute)
	if _, err := s.Consume(ctx, first); !errors.Is(err, ErrPinMismatch) {
		t.Fatalf("replaced pin must not match, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Consume(ctx, second); !errors.Is(err, ErrPinNotFound) {
		t.Fatalf("expired pin must be gone, got %v", err)
	}
}

func TestPinStoreAttemptLimit(t *testing.T) {
	mr, s := newPinStore(t, 2)
	ctx := context.Background()
	_ = s.Save(ctx, &PinRecord{Email: "a@example.com", Hash: sha256.Sum256([]byte("333333"))}, time.Minute)

	wrong := sha256.Sum256([]byte("999999"))
	if _, err := s.Consume(ctx, wrong); !errors.Is(err, ErrPinMismatch) {
		t.Fatalf("first miss: %v", err)
	}
	if _, err := s.Consume(ctx, wrong); !errors.Is(err, ErrPinAttemptsExceeded) {
		t.Fatalf("second miss: %v", err)
	}
	if mr.Exists(s.key()) {
		t.Fatal("record must be dropped after the last attempt")
	}
}
