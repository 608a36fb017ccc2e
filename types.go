package cuenta

import (
	"time"

	"github.com/gestionlocal/cuenta/avatar"
	"github.com/gestionlocal/cuenta/internal/flows"
	"github.com/gestionlocal/cuenta/session"
)

// User is the logged-in user record as returned by the login endpoint.
type User = session.User

// Record is the persisted session: the user plus its role and timestamps.
type Record = session.Record

// Step is the stage of a verified mutation or a recovery.
type Step = flows.Step

const (
	StepIdle               = flows.StepIdle
	StepAwaitingPinRequest = flows.StepAwaitingPinRequest
	StepAwaitingPinEntry   = flows.StepAwaitingPinEntry
	StepPinVerified        = flows.StepPinVerified
)

// Editable fields.
const (
	FieldUsername       = flows.FieldUsername
	FieldEmail          = flows.FieldEmail
	FieldContacto       = flows.FieldContacto
	FieldPassword       = flows.FieldPassword
	FieldEliminarCuenta = flows.FieldEliminarCuenta
)

// EditState is a snapshot of the edit in progress.
type EditState = flows.EditState

// AvailabilityState is the username lookup result for the pending candidate.
type AvailabilityState = flows.AvailabilityState

// RecoveryQuery identifies an account by persona id and congregation number
// (Method RecoverByPersonaID) or by phone (Method RecoverByPhone).
type RecoveryQuery = flows.RecoveryQuery

const (
	RecoverByPersonaID = flows.RecoverByPersonaID
	RecoverByPhone     = flows.RecoverByPhone
)

// RecoveryState is a snapshot of the recovery in progress. The account email
// is only exposed masked.
type RecoveryState struct {
	ID            string
	Step          Step
	Method        string
	Username      string
	MaskedEmail   string
	PinVerifiedAt time.Time
	Loading       bool
}

// SecurityInfo is the latest security notice.
type SecurityInfo struct {
	Contenido        string
	DescripcionLarga string
	UpdatedAt        time.Time
}

// Publication is one entry of the publications catalog.
type Publication struct {
	ID                string
	NombrePublicacion string
	Tipo              string
	Siglas            string
	URLPortada        string
}

// AvatarOption is one illustrated avatar offered by the gallery.
type AvatarOption = avatar.Option

// Gender selects the avatar gallery.
type Gender = avatar.Gender

const (
	Male   = avatar.Male
	Female = avatar.Female
)
