package cuenta

import (
	"context"
	"errors"
	"time"

	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/internal/flows"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLogout                = "logout"
	auditEventEditStarted           = "edit_started"
	auditEventEditCancelled         = "edit_cancelled"
	auditEventPinRequested          = "pin_requested"
	auditEventPinVerified           = "pin_verified"
	auditEventConfirmOpened         = "confirm_opened"
	auditEventMutationSubmitted     = "mutation_submitted"
	auditEventAccountSuspended      = "account_suspended"
	auditEventAvailabilityFailed    = "availability_failed"
	auditEventRecoveryIdentified    = "recovery_identified"
	auditEventRecoveryPinRequested  = "recovery_pin_requested"
	auditEventRecoveryPinVerified   = "recovery_pin_verified"
	auditEventRecoveryUsernameSent  = "recovery_username_sent"
	auditEventRecoveryPasswordReset = "recovery_password_reset"
	auditEventRecoveryCancelled     = "recovery_cancelled"
	auditEventAvatarUpdated         = "avatar_updated"
	auditEventSecuritySaved         = "security_saved"
	auditEventSecurityBroadcast     = "security_broadcast"
	auditEventPinRateLimited        = "pin_rate_limited"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized     AuditErrorCode = "unauthorized"
	auditErrInvalidPin       AuditErrorCode = "invalid_pin"
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrConflict         AuditErrorCode = "conflict"
	auditErrNotFound         AuditErrorCode = "not_found"
	auditErrValidation       AuditErrorCode = "validation"
	auditErrPermission       AuditErrorCode = "permission_denied"
	auditErrNotAuthenticated AuditErrorCode = "not_authenticated"
	auditErrStale            AuditErrorCode = "stale"
	auditErrBusy             AuditErrorCode = "busy"
	auditErrFlow             AuditErrorCode = "invalid_transition"
	auditErrCancelled        AuditErrorCode = "cancelled"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	flowID string,
	field string,
	step string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		FlowID:    flowID,
		RequestID: api.RequestIDFromContext(ctx),
		Field:     field,
		Step:      step,
		Success:   success,
		Metadata:  metadata,
	}
	if rec, loadErr := c.store.Load(ctx); loadErr == nil {
		event.PersonaID = rec.User.PersonaID
		event.Username = rec.User.Username
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

// flowAudit adapts emitAudit to the shape the internal controllers call.
func (c *Client) flowAudit(ctx context.Context, event string, success bool, flowID, field string, step flows.Step, err error, meta func() map[string]string) {
	c.emitAudit(ctx, event, success, flowID, field, string(step), err, meta)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidPin):
		return auditErrInvalidPin
	case errors.Is(err, ErrPinRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrUsernameUnavailable):
		return auditErrConflict
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermission
	case errors.Is(err, ErrNotAuthenticated):
		return auditErrNotAuthenticated
	case errors.Is(err, ErrStale):
		return auditErrStale
	case errors.Is(err, ErrBusy):
		return auditErrBusy
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrAcknowledgementRequired),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrFlowClosed):
		return auditErrFlow
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCancelled
	case errors.Is(err, ErrTransient),
		errors.Is(err, ErrAvatarUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
