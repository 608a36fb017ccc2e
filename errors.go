package cuenta

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the parent of every local input check failure. Use
	// errors.Is(err, ErrValidation) to tell user input problems from backend
	// and transport failures.
	ErrValidation = errors.New("validation failed")

	ErrInvalidEmail        = validationError("invalid email")
	ErrWeakPassword        = validationError("password does not meet strength rules")
	ErrPasswordMismatch    = validationError("password confirmation does not match")
	ErrUsernameTooShort    = validationError("username too short")
	ErrUsernameUnavailable = validationError("username unavailable")
	// ErrUsernameUnverified is returned while the availability of the
	// candidate is unknown: not checked yet, still checking, or the lookup
	// failed.
	ErrUsernameUnverified = validationError("username availability not verified")
	ErrPhoneTooShort      = validationError("phone number too short")
	ErrMissingField       = validationError("required field missing")
	ErrPinRequired        = validationError("pin verification required")

	// ErrUnauthorized is a 401 from login or from a password change with the
	// wrong current password.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidPin covers both a wrong and an expired PIN. The backend does
	// not distinguish them.
	ErrInvalidPin = errors.New("invalid or expired pin")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	// ErrTransient wraps network failures and unexpected backend statuses.
	ErrTransient = errors.New("backend temporarily unavailable")

	ErrInvalidTransition       = errors.New("operation not allowed in current step")
	ErrBusy                    = errors.New("request already in flight")
	ErrStale                   = errors.New("flow changed while request was in flight")
	ErrAcknowledgementRequired = errors.New("deactivation must be acknowledged first")
	ErrConfirmationRequired    = errors.New("change must be confirmed first")
	ErrFlowClosed              = errors.New("account deactivated")
	ErrNotAuthenticated        = errors.New("not logged in")
	ErrInvalidField            = errors.New("invalid editable field")
	ErrPinRateLimited          = errors.New("pin attempts rate limited")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrClientNotReady          = errors.New("client not initialized")
	ErrAvatarUnavailable       = errors.New("avatar storage unavailable")
)

type validationErr struct {
	msg string
}

func (e *validationErr) Error() string { return e.msg }

func (e *validationErr) Unwrap() error { return ErrValidation }

func validationError(msg string) error {
	return &validationErr{msg: msg}
}

func transientError(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
