package cuenta

import (
	"time"

	"github.com/gestionlocal/cuenta/internal/security"
	"github.com/gestionlocal/cuenta/session"
)

// SecurityReport describes the protections the client was built with. It
// never contains key material.
type SecurityReport struct {
	BackendHost        string
	TransportEncrypted bool
	SessionStore       string
	SessionsSigned     bool
	SigningAlgorithm   string
	SessionTTL         time.Duration
	PinLimitActive     bool
	OutboundRateLimit  float64
	MinPasswordLength  int
	AuditEnabled       bool
	MetricsEnabled     bool
	AvatarUploads      bool
}

// SecurityReport returns the posture of c. A nil client reports nothing.
func (c *Client) SecurityReport() SecurityReport {
	if c == nil {
		return SecurityReport{}
	}

	r := security.BuildReport(security.ReportInput{
		BaseURL:            c.config.API.BaseURL,
		SessionStore:       storeKind(c.store),
		SigningKeyLength:   len(c.config.Session.SigningKey),
		SessionTTL:         c.config.Session.TTL,
		PinLimiterAttached: c.pinLimiter != nil,
		RequestsPerSecond:  c.config.API.RequestsPerSecond,
		MinPasswordLength:  c.config.Flow.MinPasswordLength,
		AuditEnabled:       c.audit != nil,
		MetricsEnabled:     c.config.Metrics.Enabled,
		AvatarStore:        c.avatars != nil,
	})

	return SecurityReport{
		BackendHost:        r.BackendHost,
		TransportEncrypted: r.TransportEncrypted,
		SessionStore:       r.SessionStore,
		SessionsSigned:     r.SessionsSigned,
		SigningAlgorithm:   r.SigningAlgorithm,
		SessionTTL:         r.SessionTTL,
		PinLimitActive:     r.PinLimitActive,
		OutboundRateLimit:  r.OutboundRateLimit,
		MinPasswordLength:  r.MinPasswordLength,
		AuditEnabled:       r.AuditEnabled,
		MetricsEnabled:     r.MetricsEnabled,
		AvatarUploads:      r.AvatarUploads,
	}
}

func storeKind(s session.Store) string {
	switch s.(type) {
	case *session.RedisStore:
		return "redis"
	case *session.FileStore:
		return "file"
	case *session.MemoryStore:
		return "memory"
	case nil:
		return ""
	default:
		return "custom"
	}
}
