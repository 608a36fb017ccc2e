// Command cuenta-devserver serves the in-memory account backend for local
// development of clients.
//
// Run:
//
//	go run ./cmd/cuenta-devserver -addr :8080
//
// With RESEND_API_KEY set, PINs and notices are delivered through Resend.
// Otherwise they stay in memory and can be read at GET /_dev/outbox; the
// last issued PIN is at GET /_dev/pin. With -redis the active PIN is kept in
// Redis and survives a restart.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/gestionlocal/cuenta/internal/fakebackend"
	"github.com/gestionlocal/cuenta/internal/stores"
)

func main() {
	var (
		addr   = flag.String("addr", ":8080", "listen address")
		prefix = flag.String("prefix", "/api", "path the backend endpoints are mounted under")
		debug  = flag.Bool("debug", false, "log every request")
		rdAddr = flag.String("redis", "", "redis address for the PIN store (default: memory)")
		pinMax = flag.Int("pin-attempts", 0, "wrong PINs before the active one is dropped, 0 = unlimited")
	)
	flag.Parse()

	// Missing .env is fine.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	outbox := fakebackend.NewOutbox()
	var mailer fakebackend.Mailer = outbox
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		rm, err := fakebackend.NewResendMailer(key, os.Getenv("RESEND_FROM"))
		if err != nil {
			logger.Error("resend mailer", "err", err)
			os.Exit(1)
		}
		mailer = rm
		logger.Info("delivering mail through resend")
	}

	opts := fakebackend.Options{
		Mailer:      mailer,
		Logger:      logger,
		PinAttempts: *pinMax,
	}
	if *rdAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *rdAddr})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis", "addr", *rdAddr, "err", err)
			os.Exit(1)
		}
		opts.Pins = stores.NewPinStore(rdb, "", *pinMax)
		logger.Info("pin store in redis", "addr", *rdAddr)
	}

	backend, err := fakebackend.New(opts, fakebackend.DefaultSeed())
	if err != nil {
		logger.Error("backend", "err", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Mount(*prefix, backend.Handler())
	r.Route("/_dev", func(r chi.Router) {
		r.Get("/pin", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(backend.LastPIN()))
		})
		r.Get("/outbox", outboxHandler(outbox))
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           cors.AllowAll().Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", *addr, "prefix", *prefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
