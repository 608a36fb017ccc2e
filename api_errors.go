package cuenta

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/internal/limiters"
	"github.com/gestionlocal/cuenta/session"
)

// Operation names carried by OpError.
const (
	OpLogin          = "login"
	OpIdentifyUser   = "identify_user"
	OpRecoverUserID  = "recover_user_id"
	OpRequestPin     = "request_pin"
	OpVerifyPin      = "verify_pin"
	OpSendUsername   = "send_username"
	OpResetPassword  = "reset_password"
	OpUpdateProfile  = "update_profile"
	OpCheckUsername  = "check_username"
	OpSuspendAccount = "suspend_account"
	OpUploadAvatar   = "upload_avatar"
	OpSelectAvatar   = "select_avatar"
	OpSecurityInfo   = "security_info"
	OpSaveSecurity   = "save_security_info"
	OpBroadcast      = "broadcast_security"
	OpPublications   = "publications"
	OpSession        = "session"
)

// OpError records which backend operation failed. It unwraps to one of the
// package sentinels and to the underlying transport error.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// mapAPIError classifies a backend failure. A 401 from verify_pin is a bad
// PIN; from anywhere else it is a credential failure.
func mapAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *OpError
	if errors.As(err, &already) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &OpError{Op: op, Err: err}
	}

	var sentinel error
	switch api.StatusCode(err) {
	case 0:
		sentinel = ErrTransient
	case http.StatusUnauthorized:
		if op == OpVerifyPin {
			sentinel = ErrInvalidPin
		} else {
			sentinel = ErrUnauthorized
		}
	case http.StatusConflict:
		sentinel = ErrConflict
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusForbidden:
		sentinel = ErrPermissionDenied
	case http.StatusTooManyRequests:
		if op == OpRequestPin || op == OpVerifyPin {
			sentinel = ErrPinRateLimited
		} else {
			sentinel = ErrTransient
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if op == OpVerifyPin {
			sentinel = ErrInvalidPin
		} else {
			sentinel = ErrValidation
		}
	default:
		sentinel = ErrTransient
	}
	return &OpError{Op: op, Err: fmt.Errorf("%w: %w", sentinel, err)}
}

func mapLimiterError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrPinRateLimited):
		return &OpError{Op: op, Err: fmt.Errorf("%w: %w", ErrPinRateLimited, err)}
	default:
		return &OpError{Op: op, Err: transientError(err)}
	}
}

func mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNoSession):
		return ErrNotAuthenticated
	default:
		return &OpError{Op: OpSession, Err: transientError(err)}
	}
}
