package cuenta

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete client configuration. Start from DefaultConfig and
// override what you need, or load it with LoadConfigFromEnv.
type Config struct {
	API      APIConfig
	Flow     FlowConfig
	PinLimit PinLimitConfig
	Session  SessionConfig
	Avatar   AvatarConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls. Zero disables the cap.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig tunes the edit and recovery flows.
type FlowConfig struct {
	// UsernameCheckDelay is the debounce applied to username keystrokes
	// before an availability lookup is sent.
	UsernameCheckDelay   time.Duration
	UsernameCheckTimeout time.Duration
	MinUsernameLength    int
	MinPasswordLength    int
}

// PinLimitConfig enables the Redis-backed cap on PIN requests and verify
// attempts. It needs a Redis client on the Builder.
type PinLimitConfig struct {
	Enabled           bool
	MaxRequests       int
	MaxVerifyAttempts int
	Window            time.Duration
	RedisPrefix       string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls where the logged-in user record is kept.
type SessionConfig struct {
	RedisPrefix string
	// Profile separates several logged-in users sharing one Redis.
	Profile string
	// TTL is the lifetime of the Redis record. Zero keeps it until logout.
	TTL time.Duration
	// SigningKey, when set, signs persisted records with HS256 so a tampered
	// file or key is rejected on load. At least 32 bytes.
	SigningKey []byte
}

// AvatarConfig configures uploaded profile photos and the illustrated
// gallery.
type AvatarConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	GalleryStyle  string
	MaxBytes      int64
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the settings the client is built with when no
// config is supplied. API.BaseURL still has to be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:           15 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			UserAgent:         "cuenta/1",
		},
		Flow: FlowConfig{
			UsernameCheckDelay:   400 * time.Millisecond,
			UsernameCheckTimeout: 5 * time.Second,
			MinUsernameLength:    3,
			MinPasswordLength:    8,
		},
		PinLimit: PinLimitConfig{
			Enabled:           false,
			MaxRequests:       5,
			MaxVerifyAttempts: 5,
			Window:            15 * time.Minute,
			RedisPrefix:       "cuenta:pin",
		},
		Session: SessionConfig{
			RedisPrefix: "cuenta:sess",
			Profile:     "default",
		},
		Avatar: AvatarConfig{
			Region:       "us-east-1",
			GalleryStyle: "avataaars",
			MaxBytes:     5 << 20,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.Session.SigningKey) > 0 {
		out.Session.SigningKey = append([]byte(nil), cfg.Session.SigningKey...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API BaseURL %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}
	if c.API.RequestsPerSecond < 0 {
		return errors.New("API RequestsPerSecond must be >= 0")
	}
	if c.API.RequestsPerSecond > 0 && c.API.Burst <= 0 {
		return errors.New("API Burst must be > 0 when RequestsPerSecond is set")
	}

	if c.Flow.UsernameCheckDelay < 0 {
		return errors.New("Flow UsernameCheckDelay must be >= 0")
	}
	if c.Flow.UsernameCheckTimeout <= 0 {
		return errors.New("Flow UsernameCheckTimeout must be > 0")
	}
	if c.Flow.MinUsernameLength < 1 {
		return errors.New("Flow MinUsernameLength must be >= 1")
	}
	if c.Flow.MinPasswordLength < 8 {
		return errors.New("Flow MinPasswordLength must be >= 8")
	}

	if c.PinLimit.Enabled {
		if c.PinLimit.Window <= 0 {
			return errors.New("PinLimit Window must be > 0")
		}
		if c.PinLimit.MaxRequests <= 0 && c.PinLimit.MaxVerifyAttempts <= 0 {
			return errors.New("PinLimit needs MaxRequests or MaxVerifyAttempts")
		}
		if c.PinLimit.RedisPrefix == "" {
			return errors.New("PinLimit RedisPrefix must not be empty")
		}
	}

	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}
	if n := len(c.Session.SigningKey); n > 0 && n < 32 {
		return errors.New("Session SigningKey must be at least 32 bytes")
	}

	if c.Avatar.MaxBytes <= 0 {
		return errors.New("Avatar MaxBytes must be > 0")
	}
	if c.Avatar.GalleryStyle == "" {
		return errors.New("Avatar GalleryStyle must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}

/*
====================================
ENVIRONMENT
====================================
*/

// LoadConfigFromEnv builds a Config from CUENTA_* variables on top of
// DefaultConfig. A .env file in the working directory is read first when it
// exists; variables already set in the environment win.
func LoadConfigFromEnv() (Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()
	e := envReader{lookup: lookup}

	cfg.API.BaseURL = e.str("CUENTA_API_URL", cfg.API.BaseURL)
	cfg.API.Timeout = e.duration("CUENTA_API_TIMEOUT", cfg.API.Timeout)
	cfg.API.RequestsPerSecond = e.float("CUENTA_API_RPS", cfg.API.RequestsPerSecond)
	cfg.API.Burst = e.int("CUENTA_API_BURST", cfg.API.Burst)
	cfg.API.UserAgent = e.str("CUENTA_API_USER_AGENT", cfg.API.UserAgent)

	cfg.Flow.UsernameCheckDelay = e.duration("CUENTA_USERNAME_CHECK_DELAY", cfg.Flow.UsernameCheckDelay)
	cfg.Flow.UsernameCheckTimeout = e.duration("CUENTA_USERNAME_CHECK_TIMEOUT", cfg.Flow.UsernameCheckTimeout)
	cfg.Flow.MinUsernameLength = e.int("CUENTA_MIN_USERNAME_LENGTH", cfg.Flow.MinUsernameLength)

	cfg.PinLimit.Enabled = e.bool("CUENTA_PIN_LIMIT", cfg.PinLimit.Enabled)
	cfg.PinLimit.MaxRequests = e.int("CUENTA_PIN_MAX_REQUESTS", cfg.PinLimit.MaxRequests)
	cfg.PinLimit.MaxVerifyAttempts = e.int("CUENTA_PIN_MAX_VERIFY", cfg.PinLimit.MaxVerifyAttempts)
	cfg.PinLimit.Window = e.duration("CUENTA_PIN_WINDOW", cfg.PinLimit.Window)

	cfg.Session.RedisPrefix = e.str("CUENTA_SESSION_PREFIX", cfg.Session.RedisPrefix)
	cfg.Session.Profile = e.str("CUENTA_SESSION_PROFILE", cfg.Session.Profile)
	cfg.Session.TTL = e.duration("CUENTA_SESSION_TTL", cfg.Session.TTL)
	if key := e.str("CUENTA_SESSION_KEY", ""); key != "" {
		cfg.Session.SigningKey = []byte(key)
	}

	cfg.Avatar.Bucket = e.str("CUENTA_AVATAR_BUCKET", cfg.Avatar.Bucket)
	cfg.Avatar.Region = e.str("CUENTA_AVATAR_REGION", cfg.Avatar.Region)
	cfg.Avatar.Endpoint = e.str("CUENTA_AVATAR_ENDPOINT", cfg.Avatar.Endpoint)
	cfg.Avatar.PublicBaseURL = e.str("CUENTA_AVATAR_PUBLIC_URL", cfg.Avatar.PublicBaseURL)

	cfg.Audit.Enabled = e.bool("CUENTA_AUDIT", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = e.bool("CUENTA_METRICS", cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = e.bool("CUENTA_METRICS_LATENCY", cfg.Metrics.EnableLatencyHistograms)

	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, nil
}

// envReader keeps the first parse error so call sites stay one line each.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}
