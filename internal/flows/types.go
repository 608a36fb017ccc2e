package flows

import (
	"context"
	"time"
)

// Step is the stage of a verified mutation or recovery.
type Step string

const (
	StepIdle               Step = "idle"
	StepAwaitingPinRequest Step = "awaiting_pin_request"
	StepAwaitingPinEntry   Step = "awaiting_pin_entry"
	StepPinVerified        Step = "pin_verified"
)

// Editable fields, named as the update-profile endpoint names them.
const (
	FieldUsername       = "username"
	FieldEmail          = "email"
	FieldContacto       = "contacto"
	FieldPassword       = "password"
	FieldEliminarCuenta = "eliminar_cuenta"
)

// ValidField reports whether field names an editable field.
func ValidField(field string) bool {
	switch field {
	case FieldUsername, FieldEmail, FieldContacto, FieldPassword, FieldEliminarCuenta:
		return true
	}
	return false
}

// EditUser is the slice of the session record the edit flow needs.
type EditUser struct {
	ID                 string
	PersonaID          int
	Username           string
	Email              string
	NumeroCongregacion string
	CongregacionNombre string
}

// Errors maps flow outcomes onto the caller's sentinel errors so this package
// never imports the root.
type Errors struct {
	NotAuthenticated        error
	InvalidField            error
	InvalidTransition       error
	Busy                    error
	Stale                   error
	FlowClosed              error
	AcknowledgementRequired error
	ConfirmationRequired    error
	PinRequired             error
	MissingField            error
	InvalidEmail            error
	PhoneTooShort           error
	WeakPassword            error
	PasswordMismatch        error
	UsernameTooShort        error
	UsernameUnavailable     error
	UsernameUnverified      error
	InvalidPin              error
	Conflict                error
	NotFound                error
}

// AuditFunc records one flow event. meta is evaluated lazily.
type AuditFunc func(ctx context.Context, event string, success bool, flowID, field string, step Step, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, Step, error, func() map[string]string) {}

func defaultNow() time.Time {
	return time.Now().UTC()
}
