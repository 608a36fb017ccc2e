package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
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
	return mr, rdb
}

func testRecord() Record {
	u := User{
		ID:                 "u-1",
		PersonaID:          41,
		NombreCompleto:     "Garcia Elias",
		Email:              "elias@example.com",
		Contacto:           "1122334455",
		Estado:             "ALTA",
		NumeroCongregacion: "9738",
		CongregacionNombre: "Talar Norte",
		Username:           "elias_garcia",
	}
	now := time.Now().Unix()
	return Record{User: u, Role: RoleFor(u), CreatedAt: now, UpdatedAt: now}
}

func storesUnderTest(t *testing.T) map[string]Store {
	_, rdb := newTestRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "sesion.bin"), nil),
		"redis":  NewRedisStore(rdb, "test:sess", "default", time.Hour, nil),
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
				t.Fatalf("expected ErrNoSession on empty store, got %v", err)
			}
			if _, err := store.Replace(ctx, Patch{Email: String("x@y.com")}); !errors.Is(err, ErrNoSession) {
				t.Fatalf("expected ErrNoSession on replace without login, got %v", err)
			}

			rec := testRecord()
			if err := store.Save(ctx, rec); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := store.Replace(ctx, Patch{Username: String("elias.garcia.41")})
			if err != nil {
				t.Fatalf("Replace failed: %v", err)
			}
			if got.User.Username != "elias.garcia.41" || got.User.Email != rec.User.Email {
				t.Fatalf("unexpected record after replace: %+v", got.User)
			}

			loaded, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.User != got.User || loaded.Role != "publicador" {
				t.Fatalf("loaded record differs: %+v", loaded)
			}

			if err := store.Clear(ctx); err != nil {
				t.Fatalf("Clear failed: %v", err)
			}
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("second Clear failed: %v", err)
			}
			if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
				t.Fatalf("expected ErrNoSession after clear, got %v", err)
			}
		})
	}
}

func TestRedisStoreReplaceKeepsTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(rdb, "test:sess", "p1", time.Hour, nil)

	if err := store.Save(ctx, testRecord()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	mr.FastForward(30 * time.Minute)
	if _, err := store.Replace(ctx, Patch{Contacto: String("1199998888")}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if ttl := mr.TTL("test:sess:p1"); ttl <= 0 || ttl > 30*time.Minute {
		t.Fatalf("expected remaining ttl to be preserved, got %v", ttl)
	}
	mr.FastForward(31 * time.Minute)
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected session to expire, got %v", err)
	}
}

func TestRedisStoreConcurrentReplace(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(rdb, "test:sess", "p2", 0, nil)
	if err := store.Save(ctx, testRecord()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := store.Replace(ctx, Patch{Email: String("nuevo@example.com")})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := store.Replace(ctx, Patch{FotoURL: String("https://cdn.example.com/perfil_41.jpg")})
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Replace failed: %v", err)
		}
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.User.Email != "nuevo@example.com" || got.User.FotoURL == "" {
		t.Fatalf("lost update: %+v", got.User)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisStore(rdb, "", "", 0, nil)
	mr.Close()
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestEmptyPatchLeavesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := testRecord()
	rec.UpdatedAt = 1
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Replace(ctx, Patch{})
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if got.UpdatedAt != 1 {
		t.Fatalf("empty patch must not touch the record, got %d", got.UpdatedAt)
	}
}
