package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gestionlocal/cuenta/validate"
)

// Ways to identify the account being recovered.
const (
	RecoverByUsername  = "username"
	RecoverByPersonaID = "id_cong"
	RecoverByPhone     = "telefono"
)

// RecoveryQuery identifies an account without its username.
type RecoveryQuery struct {
	Method             string
	PersonaID          string
	NumeroCongregacion string
	Telefono           string
}

// RecoveryTarget is the account the PIN is sent for.
type RecoveryTarget struct {
	Email    string
	Username string
}

type RecoveryState struct {
	ID            string
	Step          Step
	Method        string
	Username      string
	Email         string
	MaskedEmail   string
	PinVerifiedAt time.Time
	Loading       bool
}

type RecoveryMetrics struct {
	IdentifySuccess   int
	IdentifyFailure   int
	PinRequested      int
	PinRequestFailed  int
	PinVerified       int
	PinRejected       int
	UsernameSent      int
	PasswordReset     int
	ActionFailure     int
	StaleDiscarded    int
	RecoveryCancelled int
}

type RecoveryEvents struct {
	Identified    string
	PinRequested  string
	PinVerified   string
	UsernameSent  string
	PasswordReset string
	Cancelled     string
}

type RecoveryDeps struct {
	MinPasswordLength int

	Now   func() time.Time
	NewID func() string

	IdentifyUser    func(ctx context.Context, username string) (string, error)
	RecoverIdentity func(ctx context.Context, q RecoveryQuery) (string, error)
	RequestPin      func(ctx context.Context, target RecoveryTarget) error
	VerifyPin       func(ctx context.Context, pin string) error
	SendUsername    func(ctx context.Context, email string) error
	ResetPassword   func(ctx context.Context, username, newPassword string) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RecoveryMetrics
	Events  RecoveryEvents
	Errors  Errors
}

// RecoveryController runs the logged-out recovery: identify the account,
// verify a PIN sent to its email, then either email the username or set a new
// password. It shares the guards of EditController: one request in flight,
// results dropped once the recovery is restarted or cancelled.
type RecoveryController struct {
	deps RecoveryDeps

	mu    sync.Mutex
	state RecoveryState
	epoch uint64
}

func NewRecoveryController(deps RecoveryDeps) *RecoveryController {
	normalizeRecoveryDeps(&deps)
	return &RecoveryController{deps: deps, state: RecoveryState{Step: StepIdle}}
}

func (c *RecoveryController) State() RecoveryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IdentifyUser starts a recovery for username.
func (c *RecoveryController) IdentifyUser(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return c.deps.Errors.MissingField
	}
	return c.identify(ctx, RecoverByUsername, username, func(ctx context.Context) (string, error) {
		return c.deps.IdentifyUser(ctx, username)
	})
}

// RecoverIdentity starts a recovery from the persona id and congregation
// number, or from the phone number on file.
func (c *RecoveryController) RecoverIdentity(ctx context.Context, q RecoveryQuery) error {
	q.PersonaID = strings.TrimSpace(q.PersonaID)
	q.NumeroCongregacion = strings.TrimSpace(q.NumeroCongregacion)
	switch q.Method {
	case RecoverByPersonaID:
		if q.PersonaID == "" || q.NumeroCongregacion == "" {
			return c.deps.Errors.MissingField
		}
		q.Telefono = ""
	case RecoverByPhone:
		if strings.TrimSpace(q.Telefono) == "" {
			return c.deps.Errors.MissingField
		}
		if !validate.PhoneDigits(q.Telefono) {
			return c.deps.Errors.PhoneTooShort
		}
		q.Telefono = validate.DigitsOnly(q.Telefono)
		q.PersonaID, q.NumeroCongregacion = "", ""
	default:
		return c.deps.Errors.InvalidField
	}
	return c.identify(ctx, q.Method, "", func(ctx context.Context) (string, error) {
		return c.deps.RecoverIdentity(ctx, q)
	})
}

func (c *RecoveryController) identify(ctx context.Context, method, username string, call func(context.Context) (string, error)) error {
	c.mu.Lock()
	c.epoch++
	c.state = RecoveryState{
		ID:       c.deps.NewID(),
		Step:     StepIdle,
		Method:   method,
		Username: username,
		Loading:  true,
	}
	epoch, flowID := c.epoch, c.state.ID
	c.mu.Unlock()

	email, err := call(ctx)
	if err == nil && strings.TrimSpace(email) == "" {
		err = c.deps.Errors.NotFound
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.deps.MetricInc(c.deps.Metrics.StaleDiscarded)
		return c.deps.Errors.Stale
	}
	c.state.Loading = false
	if err != nil {
		c.state = RecoveryState{Step: StepIdle}
		c.mu.Unlock()
		c.deps.MetricInc(c.deps.Metrics.IdentifyFailure)
		c.deps.EmitAudit(ctx, c.deps.Events.Identified, false, flowID, method, StepIdle, err, nil)
		return err
	}
	c.state.Email = email
	c.state.MaskedEmail = validate.MaskEmail(email)
	c.state.Step = StepAwaitingPinRequest
	c.mu.Unlock()

	c.deps.MetricInc(c.deps.Metrics.IdentifySuccess)
	c.deps.EmitAudit(ctx, c.deps.Events.Identified, true, flowID, method, StepAwaitingPinRequest, nil, nil)
	return nil
}

// RequestPin sends a PIN to the identified account. From AwaitingPinEntry it
// is a resend.
func (c *RecoveryController) RequestPin(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state.Step != StepAwaitingPinRequest && c.state.Step != StepAwaitingPinEntry {
		c.mu.Unlock()
		return c.deps.Errors.InvalidTransition
	}
	target := RecoveryTarget{Email: c.state.Email, Username: c.state.Username}
	epoch, flowID, method, step := c.beginLocked()
	c.mu.Unlock()

	err := c.deps.RequestPin(ctx, target)

	c.mu.Lock()
	if stale := c.finishLocked(epoch); stale != nil {
		c.mu.Unlock()
		return stale
	}
	if err != nil {
		c.mu.Unlock()
		c.deps.MetricInc(c.deps.Metrics.PinRequestFailed)
		c.deps.EmitAudit(ctx, c.deps.Events.PinRequested, false, flowID, method, step, err, nil)
		return err
	}
	c.state.Step = StepAwaitingPinEntry
	c.mu.Unlock()

	c.deps.MetricInc(c.deps.Metrics.PinRequested)
	c.deps.EmitAudit(ctx, c.deps.Events.PinRequested, true, flowID, method, StepAwaitingPinEntry, nil, nil)
	return nil
}

func (c *RecoveryController) VerifyPin(ctx context.Context, pin string) error {
	pin = strings.TrimSpace(pin)

	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state.Step != StepAwaitingPinEntry {
		c.mu.Unlock()
		return c.deps.Errors.InvalidTransition
	}
	if pin == "" {
		c.mu.Unlock()
		return c.deps.Errors.MissingField
	}
	if validate.DigitsOnly(pin) != pin {
		c.mu.Unlock()
		return c.deps.Errors.InvalidPin
	}
	epoch, flowID, method, step := c.beginLocked()
	c.mu.Unlock()

	err := c.deps.VerifyPin(ctx, pin)

	c.mu.Lock()
	if stale := c.finishLocked(epoch); stale != nil {
		c.mu.Unlock()
		return stale
	}
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, c.deps.Errors.InvalidPin) {
			c.deps.MetricInc(c.deps.Metrics.PinRejected)
		}
		c.deps.EmitAudit(ctx, c.deps.Events.PinVerified, false, flowID, method, step, err, nil)
		return err
	}
	c.state.Step = StepPinVerified
	c.state.PinVerifiedAt = c.deps.Now()
	c.mu.Unlock()

	c.deps.MetricInc(c.deps.Metrics.PinVerified)
	c.deps.EmitAudit(ctx, c.deps.Events.PinVerified, true, flowID, method, StepPinVerified, nil, nil)
	return nil
}

// SendUsername emails the username of the verified account and ends the
// recovery.
func (c *RecoveryController) SendUsername(ctx context.Context) error {
	c.mu.Lock()
	if err := c.verifiedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	email := c.state.Email
	epoch, flowID, method, _ := c.beginLocked()
	c.mu.Unlock()

	err := c.deps.SendUsername(ctx, email)
	return c.complete(ctx, epoch, flowID, method, err, c.deps.Metrics.UsernameSent, c.deps.Events.UsernameSent)
}

// ResetPassword sets a new password for the verified account and ends the
// recovery. It is only offered when the recovery started from a username.
func (c *RecoveryController) ResetPassword(ctx context.Context, newPassword, confirm string) error {
	c.mu.Lock()
	if err := c.verifiedLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state.Username == "" {
		c.mu.Unlock()
		return c.deps.Errors.InvalidTransition
	}
	if !validate.PasswordStrengthMin(newPassword, c.deps.MinPasswordLength).OK() {
		c.mu.Unlock()
		return c.deps.Errors.WeakPassword
	}
	if !validate.PasswordsMatch(newPassword, confirm) {
		c.mu.Unlock()
		return c.deps.Errors.PasswordMismatch
	}
	username := c.state.Username
	epoch, flowID, method, _ := c.beginLocked()
	c.mu.Unlock()

	err := c.deps.ResetPassword(ctx, username, newPassword)
	return c.complete(ctx, epoch, flowID, method, err, c.deps.Metrics.PasswordReset, c.deps.Events.PasswordReset)
}

func (c *RecoveryController) complete(ctx context.Context, epoch uint64, flowID, method string, err error, metric int, event string) error {
	c.mu.Lock()
	if stale := c.finishLocked(epoch); stale != nil {
		c.mu.Unlock()
		return stale
	}
	if err != nil {
		c.mu.Unlock()
		c.deps.MetricInc(c.deps.Metrics.ActionFailure)
		c.deps.EmitAudit(ctx, event, false, flowID, method, StepPinVerified, err, nil)
		return err
	}
	c.epoch++
	c.state = RecoveryState{Step: StepIdle}
	c.mu.Unlock()

	c.deps.MetricInc(metric)
	c.deps.EmitAudit(ctx, event, true, flowID, method, StepPinVerified, nil, nil)
	return nil
}

// Cancel abandons the recovery. Calling it again is a no-op.
func (c *RecoveryController) Cancel(ctx context.Context) {
	c.mu.Lock()
	active := c.state.ID != ""
	flowID, method, step := c.state.ID, c.state.Method, c.state.Step
	c.epoch++
	c.state = RecoveryState{Step: StepIdle}
	c.mu.Unlock()

	if active {
		c.deps.MetricInc(c.deps.Metrics.RecoveryCancelled)
		c.deps.EmitAudit(ctx, c.deps.Events.Cancelled, true, flowID, method, step, nil, nil)
	}
}

func (c *RecoveryController) guardLocked() error {
	if c.state.Loading {
		return c.deps.Errors.Busy
	}
	if c.state.Email == "" {
		return c.deps.Errors.InvalidTransition
	}
	return nil
}

func (c *RecoveryController) verifiedLocked() error {
	if err := c.guardLocked(); err != nil {
		return err
	}
	if c.state.Step != StepPinVerified {
		return c.deps.Errors.PinRequired
	}
	return nil
}

func (c *RecoveryController) beginLocked() (uint64, string, string, Step) {
	c.state.Loading = true
	return c.epoch, c.state.ID, c.state.Method, c.state.Step
}

func (c *RecoveryController) finishLocked(epoch uint64) error {
	if epoch != c.epoch {
		c.deps.MetricInc(c.deps.Metrics.StaleDiscarded)
		return c.deps.Errors.Stale
	}
	c.state.Loading = false
	return nil
}

func normalizeRecoveryDeps(deps *RecoveryDeps) {
	if deps.MinPasswordLength <= 0 {
		deps.MinPasswordLength = validate.MinPasswordLength
	}
	if deps.Now == nil {
		deps.Now = defaultNow
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return "recovery" }
	}
	unavailable := deps.Errors.NotAuthenticated
	if deps.IdentifyUser == nil {
		deps.IdentifyUser = func(context.Context, string) (string, error) { return "", unavailable }
	}
	if deps.RecoverIdentity == nil {
		deps.RecoverIdentity = func(context.Context, RecoveryQuery) (string, error) { return "", unavailable }
	}
	if deps.RequestPin == nil {
		deps.RequestPin = func(context.Context, RecoveryTarget) error { return unavailable }
	}
	if deps.VerifyPin == nil {
		deps.VerifyPin = func(context.Context, string) error { return unavailable }
	}
	if deps.SendUsername == nil {
		deps.SendUsername = func(context.Context, string) error { return unavailable }
	}
	if deps.ResetPassword == nil {
		deps.ResetPassword = func(context.Context, string, string) error { return unavailable }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
