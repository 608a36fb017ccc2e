package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gestionlocal/cuenta/internal/rate"
)

var (
	ErrPinRateLimited        = errors.New("pin rate limited")
	ErrPinLimiterUnavailable = errors.New("pin limiter unavailable")
)

// PinConfig bounds PIN emails and PIN verification attempts per identity
// inside a fixed window.
type PinConfig struct {
	MaxRequests       int
	MaxVerifyAttempts int
	Window            time.Duration
	Prefix            string
}

// PinLimiter counts PIN requests and verify attempts in Redis so that several
// client processes on the same account share one budget.
type PinLimiter struct {
	window *rate.Window
	config PinConfig
}

func NewPinLimiter(redisClient redis.UniversalClient, cfg PinConfig) *PinLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "cuenta:pin"
	}
	return &PinLimiter{
		window: rate.NewWindow(redisClient, cfg.Window),
		config: cfg,
	}
}

// CheckRequest counts one PIN email for identity.
func (l *PinLimiter) CheckRequest(ctx context.Context, identity string) error {
	if l == nil || l.config.MaxRequests <= 0 {
		return nil
	}
	return l.enforceFixedWindow(ctx, l.requestKey(identity), l.config.MaxRequests)
}

// CheckVerify counts one verification attempt for identity.
func (l *PinLimiter) CheckVerify(ctx context.Context, identity string) error {
	if l == nil || l.config.MaxVerifyAttempts <= 0 {
		return nil
	}
	return l.enforceFixedWindow(ctx, l.verifyKey(identity), l.config.MaxVerifyAttempts)
}

// ResetVerify clears the attempt counter after a successful verification.
func (l *PinLimiter) ResetVerify(ctx context.Context, identity string) error {
	if l == nil {
		return nil
	}
	return mapRateErr(l.window.Clear(ctx, l.verifyKey(identity)))
}

func (l *PinLimiter) enforceFixedWindow(ctx context.Context, key string, max int) error {
	return mapRateErr(l.window.Hit(ctx, key, max))
}

func mapRateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrPinRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrPinLimiterUnavailable, err)
	}
}

func (l *PinLimiter) requestKey(identity string) string {
	return l.config.Prefix + ":req:" + normalizeIdentity(identity)
}

func (l *PinLimiter) verifyKey(identity string) string {
	return l.config.Prefix + ":ver:" + normalizeIdentity(identity)
}

func normalizeIdentity(identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return "anon"
	}
	return identity
}
