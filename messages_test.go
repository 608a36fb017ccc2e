package cuenta

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessage(t *testing.T) {
	apiErr := errors.New("status 500")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain sentinel", ErrPasswordMismatch, "Las contraseñas no coinciden."},
		{"wrapped sentinel", fmt.Errorf("edit: %w", ErrPinRequired), "Primero verificá el PIN enviado a tu email."},
		{"login 401", &OpError{Op: OpLogin, Err: fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)}, "Clave incorrecta."},
		{"wrong current password", &OpError{Op: OpResetPassword, Err: fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)}, MsgWrongCurrentPass},
		{"pin send failure", &OpError{Op: OpRequestPin, Err: fmt.Errorf("%w: %w", ErrTransient, apiErr)}, MsgPinSendFailed},
		{"deactivate failure", &OpError{Op: OpSuspendAccount, Err: apiErr}, MsgDeactivateFailed},
		{"broadcast failure", &OpError{Op: OpBroadcast, Err: apiErr}, MsgBroadcastFailed},
		{"unknown op", &OpError{Op: OpUpdateProfile, Err: apiErr}, MsgSaveFailed},
		{"conflict wins over op", &OpError{Op: OpUpdateProfile, Err: fmt.Errorf("%w: %w", ErrConflict, apiErr)}, "Ese usuario ya está en uso."},
		{"unclassified", errors.New("boom"), MsgSaveFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := UserMessage(tc.err); got != tc.want {
				t.Fatalf("UserMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEverySentinelHasMessage(t *testing.T) {
	for _, err := range []error{
		ErrInvalidEmail, ErrWeakPassword, ErrUsernameTooShort, ErrUsernameUnavailable,
		ErrUsernameUnverified, ErrPhoneTooShort, ErrMissingField, ErrInvalidPin,
		ErrPinRateLimited, ErrNotFound, ErrAcknowledgementRequired, ErrConfirmationRequired,
		ErrBusy, ErrFlowClosed, ErrNotAuthenticated, ErrPermissionDenied, ErrAvatarUnavailable,
	} {
		if UserMessage(err) == MsgSaveFailed {
			t.Fatalf("%v falls back to the generic message", err)
		}
	}
}
