package cuenta

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gestionlocal/cuenta/avatar"
	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/internal/audit"
	"github.com/gestionlocal/cuenta/internal/limiters"
	"github.com/gestionlocal/cuenta/jwt"
	"github.com/gestionlocal/cuenta/permission"
	"github.com/gestionlocal/cuenta/session"
	"github.com/redis/go-redis/v9"
)

// Navigator is told when the member must be sent back to the login entry:
// after logout and after the account is deactivated.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a plain function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// Builder assembles a Client.
//
// Builder instances are intended to be configured during initialization and
// then discarded; Build can only be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store       session.Store
	sessionFile string
	auditSink   AuditSink
	navigator   Navigator
	logger      *slog.Logger
	avatars     avatar.Store
	httpClient  *http.Client

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client used by the session store (unless
// another store is set) and by the PIN limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the session store entirely.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithSessionFile keeps the session in a file at path. Ignored when a store
// was given with WithSessionStore.
func (b *Builder) WithSessionFile(path string) *Builder {
	b.sessionFile = path
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAvatarStore sets where uploaded photos go. Without it, and without an
// Avatar.Bucket in the config, UploadAvatar fails with ErrAvatarUnavailable.
func (b *Builder) WithAvatarStore(s avatar.Store) *Builder {
	b.avatars = s
	return b
}

// WithHTTPClient replaces the transport used for backend calls.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client. Build may
// return an error when the configuration is invalid or a required dependency
// is missing.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PinLimit.Enabled && b.redis == nil {
		return nil, errors.New("PinLimit requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, w := range cfg.Lint() {
		level := slog.LevelDebug
		if w.Severity == LintWarn {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "config lint", "code", w.Code, "detail", w.Message)
	}

	metrics := NewMetrics(cfg.Metrics)

	// -------- TRANSPORT --------
	transport, err := api.New(api.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		UserAgent:         cfg.API.UserAgent,
		HTTPClient:        b.httpClient,
		Observe: func(_ string, elapsed time.Duration, _ error) {
			metrics.Observe(MetricAPILatency, elapsed)
		},
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	store, err := b.sessionStore(cfg)
	if err != nil {
		return nil, err
	}

	// -------- ROLES --------
	roles, err := permission.Default()
	if err != nil {
		return nil, err
	}

	// -------- AVATARS --------
	avatars := b.avatars
	if avatars == nil && cfg.Avatar.Bucket != "" {
		s3, err := avatar.NewS3Store(context.Background(), avatar.S3Config{
			Bucket:   cfg.Avatar.Bucket,
			Region:   cfg.Avatar.Region,
			Endpoint: cfg.Avatar.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		avatars = s3
	}

	var pinLimiter *limiters.PinLimiter
	if cfg.PinLimit.Enabled {
		pinLimiter = limiters.NewPinLimiter(b.redis, limiters.PinConfig{
			MaxRequests:       cfg.PinLimit.MaxRequests,
			MaxVerifyAttempts: cfg.PinLimit.MaxVerifyAttempts,
			Window:            cfg.PinLimit.Window,
			Prefix:            cfg.PinLimit.RedisPrefix,
		})
	}

	c := &Client{
		config:     cfg,
		api:        transport,
		store:      store,
		roles:      roles,
		pinLimiter: pinLimiter,
		avatars:    avatars,
		navigator:  b.navigator,
		logger:     logger,
		metrics:    metrics,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	c.edit = newEditFlow(c)
	c.recovery = newRecoveryFlow(c)

	b.built = true

	return c, nil
}

func (b *Builder) sessionStore(cfg Config) (session.Store, error) {
	if b.store != nil {
		return b.store, nil
	}

	var codec session.Codec = session.PlainCodec{}
	if len(cfg.Session.SigningKey) > 0 {
		signer, err := jwt.NewManager(jwt.Config{
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    cfg.Session.SigningKey,
			TTL:           cfg.Session.TTL,
			Issuer:        "cuenta",
		})
		if err != nil {
			return nil, err
		}
		codec = session.SignedCodec{Signer: signer}
	}

	switch {
	case b.sessionFile != "":
		return session.NewFileStore(b.sessionFile, codec), nil
	case b.redis != nil:
		return session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Profile, cfg.Session.TTL, codec), nil
	default:
		return session.NewMemoryStore(), nil
	}
}
