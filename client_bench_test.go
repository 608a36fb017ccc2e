package cuenta

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gestionlocal/cuenta/internal/fakebackend"
	"github.com/gestionlocal/cuenta/password"
)

func BenchmarkCurrentUserMemory(b *testing.B) {
	client, cleanup := newBenchmarkClient(b, false)
	defer cleanup()
	benchCurrentUser(b, client)
}

func BenchmarkCurrentUserRedis(b *testing.B) {
	client, cleanup := newBenchmarkClient(b, true)
	defer cleanup()
	benchCurrentUser(b, client)
}

func BenchmarkLoginLogout(b *testing.B) {
	client, cleanup := newBenchmarkClient(b, true)
	defer cleanup()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := client.Login(ctx, "luis.perez", "clave-inicial-42"); err != nil {
			b.Fatalf("login failed: %v", err)
		}
		if err := client.Logout(ctx); err != nil {
			b.Fatalf("logout failed: %v", err)
		}
	}
}

func benchCurrentUser(b *testing.B, client *Client) {
	ctx := context.Background()
	if _, err := client.Login(ctx, "luis.perez", "clave-inicial-42"); err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := client.CurrentUser(ctx); err != nil {
			b.Fatalf("current user failed: %v", err)
		}
	}
}

func newBenchmarkClient(tb testing.TB, useRedis bool) (*Client, func()) {
	tb.Helper()

	argon, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		tb.Fatalf("argon: %v", err)
	}
	backend, err := fakebackend.New(fakebackend.Options{
		Passwords: password.NewChecker(argon),
	}, fakebackend.DefaultSeed())
	if err != nil {
		tb.Fatalf("fakebackend: %v", err)
	}
	srv := httptest.NewServer(backend.Handler())

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.API.RequestsPerSecond = 0

	builder := New().WithConfig(cfg)
	var (
		mr  *miniredis.Miniredis
		rdb *redis.Client
	)
	if useRedis {
		mr, err = miniredis.Run()
		if err != nil {
			tb.Fatalf("miniredis start: %v", err)
		}
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		builder = builder.WithRedis(rdb)
	}

	client, err := builder.Build()
	if err != nil {
		tb.Fatalf("Build: %v", err)
	}

	cleanup := func() {
		client.Close()
		srv.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		if mr != nil {
			mr.Close()
		}
	}
	return client, cleanup
}
