package cuenta

import (
	"context"

	"github.com/gestionlocal/cuenta/internal/api"
)

// WithRequestID pins the X-Request-ID sent with every backend call made with
// ctx. The same id is written into the audit events those calls produce.
// Without it each call gets a fresh uuid.
func WithRequestID(ctx context.Context, id string) context.Context {
	return api.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return api.RequestIDFromContext(ctx)
}
