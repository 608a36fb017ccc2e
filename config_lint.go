package cuenta

import (
	"net"
	"net/url"
	"time"
)

// LintSeverity grades a LintWarning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
)

func (s LintSeverity) String() string {
	if s == LintWarn {
		return "warn"
	}
	return "info"
}

// LintWarning is a setting that validates but weakens the client.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// AtLeast keeps the warnings of severity s or higher.
func (r LintResult) AtLeast(s LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= s {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that pass Validate but are risky. It never fails;
// the Builder logs the result at build time.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		add("insecure_transport", LintWarn, "passwords and PINs travel over plain http")
	}
	if c.API.RequestsPerSecond <= 0 {
		add("outbound_rate_unlimited", LintInfo, "no cap on requests to the backend")
	}
	if c.API.Timeout > time.Minute {
		add("api_timeout_long", LintInfo, "a stalled backend blocks a flow for over a minute")
	}
	if len(c.Session.SigningKey) == 0 {
		add("session_unsigned", LintWarn, "a persisted session can be edited to change the role")
	}
	if c.Session.TTL == 0 {
		add("session_ttl_unbounded", LintInfo, "a redis session lives until logout")
	}
	if !c.PinLimit.Enabled {
		add("pin_limit_disabled", LintInfo, "PIN requests and attempts are only limited by the backend")
	}
	if c.Flow.UsernameCheckDelay < 100*time.Millisecond {
		add("availability_debounce_short", LintInfo, "every keystroke can reach the availability endpoint")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_may_drop", LintInfo, "audit events are dropped when the buffer is full")
	}
	return ws
}

// HardenedConfig is DefaultConfig with every optional protection on that does
// not need outside material. PinLimit needs a Redis client on the Builder;
// Session.SigningKey still has to be supplied.
func HardenedConfig() Config {
	cfg := defaultConfig()
	cfg.API.RequestsPerSecond = 5
	cfg.API.Burst = 3
	cfg.Flow.MinPasswordLength = 10
	cfg.PinLimit.Enabled = true
	cfg.PinLimit.MaxRequests = 3
	cfg.PinLimit.MaxVerifyAttempts = 5
	cfg.Session.TTL = 12 * time.Hour
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
