package security

import (
	"net/url"
	"time"
)

// Report summarises the protections a configured client runs with.
type Report struct {
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

// ReportInput is the raw material for [BuildReport].
type ReportInput struct {
	BaseURL            string
	SessionStore       string
	SigningKeyLength   int
	SessionTTL         time.Duration
	PinLimiterAttached bool
	RequestsPerSecond  float64
	MinPasswordLength  int
	AuditEnabled       bool
	MetricsEnabled     bool
	AvatarStore        bool
}

// BuildReport derives a Report from the client configuration.
func BuildReport(input ReportInput) Report {
	var host string
	var encrypted bool
	if u, err := url.Parse(input.BaseURL); err == nil {
		host = u.Host
		encrypted = u.Scheme == "https"
	}

	signed := input.SigningKeyLength > 0
	algorithm := ""
	if signed {
		algorithm = "HS256"
	}

	rps := input.RequestsPerSecond
	if rps < 0 {
		rps = 0
	}

	return Report{
		BackendHost:        host,
		TransportEncrypted: encrypted,
		SessionStore:       input.SessionStore,
		SessionsSigned:     signed,
		SigningAlgorithm:   algorithm,
		SessionTTL:         input.SessionTTL,
		PinLimitActive:     input.PinLimiterAttached,
		OutboundRateLimit:  rps,
		MinPasswordLength:  input.MinPasswordLength,
		AuditEnabled:       input.AuditEnabled,
		MetricsEnabled:     input.MetricsEnabled,
		AvatarUploads:      input.AvatarStore,
	}
}
