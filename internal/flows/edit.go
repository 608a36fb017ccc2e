package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gestionlocal/cuenta/internal/availability"
	"github.com/gestionlocal/cuenta/validate"
)

// AvailabilityState is the username lookup result for the current candidate.
type AvailabilityState struct {
	Candidate   string
	Checking    bool
	Checked     bool
	Exists      bool
	Failed      bool
	Suggestions []string
}

// EditState is a snapshot of the verified mutation in progress.
type EditState struct {
	ID              string
	Field           string
	Step            Step
	PendingValue    string
	ConfirmValue    string
	CurrentPassword string
	PinVerifiedAt   time.Time
	Acknowledged    bool
	ConfirmPending  bool
	Loading         bool
	Closed          bool
	Availability    AvailabilityState
}

type EditMetrics struct {
	FlowStarted         int
	FlowCancelled       int
	PinRequested        int
	PinRequestFailed    int
	PinVerified         int
	PinRejected         int
	SubmitSuccess       int
	SubmitFailure       int
	SubmitConflict      int
	StaleDiscarded      int
	AccountSuspended    int
	AvailabilityChecked int
	AvailabilityFailed  int
}

type EditEvents struct {
	Started            string
	Cancelled          string
	PinRequested       string
	PinVerified        string
	ConfirmOpened      string
	Submitted          string
	AccountSuspended   string
	AvailabilityFailed string
}

type EditDeps struct {
	MinUsernameLength int
	MinPasswordLength int

	Now   func() time.Time
	NewID func() string

	CurrentUser    func(ctx context.Context) (EditUser, error)
	RequestPin     func(ctx context.Context, user EditUser) error
	VerifyPin      func(ctx context.Context, user EditUser, pin string) error
	UpdateField    func(ctx context.Context, user EditUser, field, value string) error
	ChangePassword func(ctx context.Context, user EditUser, current, next string) error
	SuspendAccount func(ctx context.Context, user EditUser) error

	// ApplyUpdate writes a successful mutation into the session record.
	ApplyUpdate func(ctx context.Context, field, value string) error
	// EndSession clears the session and sends the user to the login entry.
	EndSession func(ctx context.Context) error

	ScheduleAvailability func(candidate string) uint64
	CancelAvailability   func()

	Warn      func(msg string, args ...any)
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics EditMetrics
	Events  EditEvents
	Errors  Errors
}

// EditController drives one verified mutation at a time:
//
//	Idle -> AwaitingPinRequest -> AwaitingPinEntry -> PinVerified -> confirm -> submit -> Idle
//
// Network calls run without the lock held. Each call captures the flow epoch
// and its result is dropped when Start or Cancel moved the epoch meanwhile.
type EditController struct {
	deps EditDeps

	mu       sync.Mutex
	state    EditState
	epoch    uint64
	availSeq uint64
	ended    bool
}

// NewEditController returns an idle controller.
func NewEditController(deps EditDeps) *EditController {
	normalizeEditDeps(&deps)
	return &EditController{
		deps:  deps,
		state: EditState{Step: StepIdle},
	}
}

// State returns a copy of the current flow state.
func (c *EditController) State() EditState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start opens an edit of field, discarding any edit already in progress.
func (c *EditController) Start(ctx context.Context, field string) error {
	if !ValidField(field) {
		return c.deps.Errors.InvalidField
	}
	if _, err := c.deps.CurrentUser(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return c.deps.Errors.FlowClosed
	}
	c.resetLocked()
	c.state.ID = c.deps.NewID()
	c.state.Field = field
	c.state.Step = StepAwaitingPinRequest
	flowID := c.state.ID
	c.mu.Unlock()

	c.deps.MetricInc(c.deps.Metrics.FlowStarted)
	c.deps.EmitAudit(ctx, c.deps.Events.Started, true, flowID, field, StepAwaitingPinRequest, nil, nil)
	return nil
}

// Acknowledge records that the user accepted that deactivation is
// irreversible. It is required before a PIN can be requested for
// eliminar_cuenta.
func (c *EditController) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return c.deps.Errors.FlowClosed
	}
	if c.state.Field != FieldEliminarCuenta || c.state.Step != StepAwaitingPinRequest {
		return c.deps.Errors.InvalidTransition
	}
	c.state.Acknowledged = true
	return nil
}

// RequestPin emails a PIN. From AwaitingPinEntry it is the explicit resend.
// A failure leaves the step unchanged.
func (c *EditController) RequestPin(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state.Step != StepAwaitingPinRequest && c.state.Step != StepAwaitingPinEntry {
		c.mu.Unlock()
		return c.deps.Errors.InvalidTransition
	}
	if c.state.Field == FieldEliminarCuenta && !c.state.Acknowledged {
		c.mu.Unlock()
		return c.deps.Errors.AcknowledgementRequired
	}
	epoch, flowID, field, step := c.beginLocked()
	c.mu.Unlock()

	user, err := c.deps.CurrentUser(ctx)
	if err == nil {
		err = c.deps.RequestPin(ctx, user)
	}

	c.mu.Lock()
	if stale := c.finishLocked(epoch); stale != nil {
		c.mu.Unlock()
		return stale
	}
	if err != nil {
		c.mu.Unlock()
		c.deps.MetricInc(c.deps.Metrics.PinRequestFailed)
		c.deps.EmitAudit(ctx, c.deps.Events.PinRequested, false, flowID, field, step, err, nil)
		return err
	}
	c.state.Step = StepAwaitingPinEntry
	c.mu.Unlock()

	c.deps.MetricInc(c.deps.Metrics.PinRequested)
	c.deps.EmitAudit(ctx, c.deps.Events.PinRequested, true, flowID, field, StepAwaitingPinEntry, nil, func() map[string]string {
		return map[string]string{"resend": boolString(step == StepAwaitingPinEntry)}
	})
	return nil
}

// VerifyPin checks pin with the backend. A rejected PIN keeps the flow at
// AwaitingPinEntry with every pending value intact.
func (c *EditController) VerifyPin(ctx context.Context, pin string) error {
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
	epoch, flowID, field, step := c.beginLocked()
	c.mu.Unlock()

	user, err := c.deps.CurrentUser(ctx)
	if err == nil {
		err = c.deps.VerifyPin(ctx, user, pin)
	}

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
		c.deps.EmitAudit(ctx, c.deps.Events.PinVerified, false, flowID, field, step, err, nil)
		return err
	}
	c.state.Step = StepPinVerified
	c.state.PinVerifiedAt = c.deps.Now()
	c.mu.Unlock()

	c.deps.MetricInc(c.deps.Metrics.PinVerified)
	c.deps.EmitAudit(ctx, c.deps.Events.PinVerified, true, flowID, field, StepPinVerified, nil, nil)
	return nil
}

// SetPendingValue sets the candidate new value. The password can only be
// typed once the PIN is verified; deactivation takes no value. Username and
// email are trimmed, and for username the availability lookup is rescheduled
// with the trimmed value.
func (c *EditController) SetPendingValue(value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	switch c.state.Field {
	case FieldEliminarCuenta:
		return c.deps.Errors.InvalidField
	case FieldPassword:
		if c.state.Step != StepPinVerified {
			return c.deps.Errors.PinRequired
		}
	}
	if c.state.Field == FieldUsername || c.state.Field == FieldEmail {
		value = strings.TrimSpace(value)
	}
	c.state.PendingValue = value
	c.state.ConfirmPending = false
	if c.state.Field == FieldUsername {
		c.scheduleAvailabilityLocked(value)
	}
	return nil
}

// SetConfirmValue sets the password confirmation.
func (c *EditController) SetConfirmValue(value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if c.state.Field != FieldPassword {
		return c.deps.Errors.InvalidField
	}
	if c.state.Step != StepPinVerified {
		return c.deps.Errors.PinRequired
	}
	c.state.ConfirmValue = value
	c.state.ConfirmPending = false
	return nil
}

// SetCurrentPassword sets the current password required by a password change.
func (c *EditController) SetCurrentPassword(value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if c.state.Field != FieldPassword {
		return c.deps.Errors.InvalidField
	}
	c.state.CurrentPassword = value
	c.state.ConfirmPending = false
	return nil
}

// ChooseSuggestion replaces the username candidate with one of the
// suggestions the backend offered, and checks it again.
func (c *EditController) ChooseSuggestion(suggestion string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if c.state.Field != FieldUsername {
		return c.deps.Errors.InvalidField
	}
	found := false
	for _, s := range c.state.Availability.Suggestions {
		if s == suggestion {
			found = true
			break
		}
	}
	if !found {
		return c.deps.Errors.InvalidTransition
	}
	c.state.PendingValue = suggestion
	c.state.ConfirmPending = false
	c.scheduleAvailabilityLocked(suggestion)
	return nil
}

// HandleAvailability applies a lookup outcome if it still belongs to the
// current candidate. A failed lookup marks the candidate unverified, which
// blocks submission until a later lookup succeeds.
func (c *EditController) HandleAvailability(out availability.Outcome) {
	c.mu.Lock()
	if c.ended || c.state.Field != FieldUsername || out.Seq == 0 || out.Seq != c.availSeq || out.Candidate != c.state.PendingValue {
		c.mu.Unlock()
		c.deps.MetricInc(c.deps.Metrics.StaleDiscarded)
		return
	}
	flowID, step := c.state.ID, c.state.Step
	if out.Err != nil {
		c.state.Availability = AvailabilityState{
			Candidate: out.Candidate,
			Failed:    true,
		}
		c.mu.Unlock()
		c.deps.MetricInc(c.deps.Metrics.AvailabilityFailed)
		c.deps.Warn("username availability lookup failed", "candidate", out.Candidate, "err", out.Err)
		c.deps.EmitAudit(context.Background(), c.deps.Events.AvailabilityFailed, false, flowID, FieldUsername, step, out.Err, nil)
		return
	}
	c.state.Availability = AvailabilityState{
		Candidate:   out.Candidate,
		Checked:     true,
		Exists:      out.Result.Exists,
		Suggestions: append([]string(nil), out.Result.Suggestions...),
	}
	c.mu.Unlock()
	c.deps.MetricInc(c.deps.Metrics.AvailabilityChecked)
}

// CheckSubmit returns the first local reason the pending value cannot be
// submitted, or nil. It never touches the network.
func (c *EditController) CheckSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return c.deps.Errors.FlowClosed
	}
	return c.readyLocked()
}

// RequestSubmit opens the confirmation interstitial.
func (c *EditController) RequestSubmit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.submittableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.ConfirmPending = true
	flowID, field := c.state.ID, c.state.Field
	c.mu.Unlock()

	c.deps.EmitAudit(ctx, c.deps.Events.ConfirmOpened, true, flowID, field, StepPinVerified, nil, nil)
	return nil
}

// DismissConfirm closes the confirmation interstitial without submitting.
func (c *EditController) DismissConfirm() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return c.deps.Errors.FlowClosed
	}
	c.state.ConfirmPending = false
	return nil
}

// ConfirmSubmit issues the mutation. It is only reachable from PinVerified
// with the confirmation open. On failure the flow stays at PinVerified so the
// value can be corrected without a new PIN; a username conflict marks the
// candidate as taken. On success the session record is updated and the flow
// returns to Idle. A successful deactivation closes the controller for good.
// When Cancel or Start moved the flow while the call was in flight, a
// successful result is still mirrored into the session (or ends it) and Stale
// is returned; the newer flow state is not touched.
func (c *EditController) ConfirmSubmit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.state.ConfirmPending {
		c.mu.Unlock()
		return c.deps.Errors.ConfirmationRequired
	}
	if err := c.submittableLocked(); err != nil {
		c.state.ConfirmPending = false
		c.mu.Unlock()
		return err
	}
	c.state.ConfirmPending = false
	field := c.state.Field
	value := c.state.PendingValue
	confirmCurrent := c.state.CurrentPassword
	epoch, flowID, _, _ := c.beginLocked()
	c.mu.Unlock()

	user, err := c.deps.CurrentUser(ctx)
	if err == nil {
		switch field {
		case FieldPassword:
			err = c.deps.ChangePassword(ctx, user, confirmCurrent, value)
		case FieldEliminarCuenta:
			err = c.deps.SuspendAccount(ctx, user)
		case FieldContacto:
			value = validate.DigitsOnly(value)
			err = c.deps.UpdateField(ctx, user, field, value)
		default:
			value = strings.TrimSpace(value)
			err = c.deps.UpdateField(ctx, user, field, value)
		}
	}

	c.mu.Lock()
	if stale := c.finishLocked(epoch); stale != nil {
		if err != nil {
			c.mu.Unlock()
			return stale
		}
		// The backend committed the change; only the newer flow state is
		// left alone.
		if field == FieldEliminarCuenta {
			c.resetLocked()
			c.ended = true
			c.state.Closed = true
		}
		c.mu.Unlock()
		if serr := c.commitLocal(ctx, flowID, field, value); serr != nil {
			return serr
		}
		return stale
	}
	if err != nil {
		conflict := errors.Is(err, c.deps.Errors.Conflict)
		if conflict && field == FieldUsername && c.state.PendingValue == value {
			c.state.Availability = AvailabilityState{Candidate: value, Checked: true, Exists: true}
		}
		c.mu.Unlock()
		if conflict {
			c.deps.MetricInc(c.deps.Metrics.SubmitConflict)
		}
		c.deps.MetricInc(c.deps.Metrics.SubmitFailure)
		c.deps.EmitAudit(ctx, c.deps.Events.Submitted, false, flowID, field, StepPinVerified, err, nil)
		return err
	}

	c.resetLocked()
	if field == FieldEliminarCuenta {
		c.ended = true
		c.state.Closed = true
	}
	c.mu.Unlock()

	return c.commitLocal(ctx, flowID, field, value)
}

// commitLocal mirrors a mutation the backend accepted: a deactivation ends
// the session, anything else is patched into the session record.
func (c *EditController) commitLocal(ctx context.Context, flowID, field, value string) error {
	c.deps.MetricInc(c.deps.Metrics.SubmitSuccess)
	c.deps.EmitAudit(ctx, c.deps.Events.Submitted, true, flowID, field, StepPinVerified, nil, nil)

	if field == FieldEliminarCuenta {
		c.deps.MetricInc(c.deps.Metrics.AccountSuspended)
		c.deps.EmitAudit(ctx, c.deps.Events.AccountSuspended, true, flowID, field, StepIdle, nil, nil)
		return c.deps.EndSession(ctx)
	}
	if field == FieldPassword {
		value = ""
	}
	return c.deps.ApplyUpdate(ctx, field, value)
}

// Cancel discards the edit in progress. Calling it again is a no-op.
func (c *EditController) Cancel(ctx context.Context) {
	c.mu.Lock()
	active := c.state.Field != ""
	flowID, field, step := c.state.ID, c.state.Field, c.state.Step
	c.resetLocked()
	c.mu.Unlock()

	if active {
		c.deps.MetricInc(c.deps.Metrics.FlowCancelled)
		c.deps.EmitAudit(ctx, c.deps.Events.Cancelled, true, flowID, field, step, nil, nil)
	}
}

// Closed reports whether the controller was closed by a deactivation.
func (c *EditController) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// Reopen clears a previous deactivation and returns to Idle. Called when a
// new member logs in.
func (c *EditController) Reopen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.ended = false
}

func (c *EditController) snapshotLocked() EditState {
	s := c.state
	s.Availability.Suggestions = append([]string(nil), c.state.Availability.Suggestions...)
	s.Closed = c.ended
	return s
}

// resetLocked returns to Idle and invalidates every in-flight call.
func (c *EditController) resetLocked() {
	c.epoch++
	c.availSeq = 0
	c.deps.CancelAvailability()
	c.state = EditState{Step: StepIdle}
}

func (c *EditController) guardLocked() error {
	if c.ended {
		return c.deps.Errors.FlowClosed
	}
	if c.state.Field == "" {
		return c.deps.Errors.InvalidTransition
	}
	if c.state.Loading {
		return c.deps.Errors.Busy
	}
	return nil
}

func (c *EditController) editableLocked() error {
	if c.ended {
		return c.deps.Errors.FlowClosed
	}
	if c.state.Field == "" {
		return c.deps.Errors.InvalidTransition
	}
	return nil
}

func (c *EditController) beginLocked() (uint64, string, string, Step) {
	c.state.Loading = true
	return c.epoch, c.state.ID, c.state.Field, c.state.Step
}

// finishLocked clears Loading for the call started at epoch, or reports the
// call as stale when the flow moved on.
func (c *EditController) finishLocked(epoch uint64) error {
	if epoch != c.epoch || c.ended {
		c.deps.MetricInc(c.deps.Metrics.StaleDiscarded)
		return c.deps.Errors.Stale
	}
	c.state.Loading = false
	return nil
}

func (c *EditController) scheduleAvailabilityLocked(candidate string) {
	if !validate.Username(candidate, c.deps.MinUsernameLength) {
		c.availSeq = 0
		c.deps.CancelAvailability()
		c.state.Availability = AvailabilityState{Candidate: candidate}
		return
	}
	c.state.Availability = AvailabilityState{Candidate: candidate, Checking: true}
	c.availSeq = c.deps.ScheduleAvailability(candidate)
}

// readyLocked is the enable-the-button gate: PIN verified and the value valid
// for its field.
func (c *EditController) readyLocked() error {
	if c.state.Field == "" {
		return c.deps.Errors.InvalidTransition
	}
	if c.state.Step != StepPinVerified {
		return c.deps.Errors.PinRequired
	}

	v := c.state.PendingValue
	switch c.state.Field {
	case FieldEmail:
		if !validate.Email(strings.TrimSpace(v)) {
			return c.deps.Errors.InvalidEmail
		}
	case FieldContacto:
		if !validate.PhoneDigits(v) {
			return c.deps.Errors.PhoneTooShort
		}
	case FieldUsername:
		if strings.TrimSpace(v) == "" {
			return c.deps.Errors.MissingField
		}
		if !validate.Username(v, c.deps.MinUsernameLength) {
			return c.deps.Errors.UsernameTooShort
		}
		a := c.state.Availability
		if a.Candidate != v || a.Checking || a.Failed || !a.Checked {
			return c.deps.Errors.UsernameUnverified
		}
		if a.Exists {
			return c.deps.Errors.UsernameUnavailable
		}
	case FieldPassword:
		if !validate.PasswordStrengthMin(v, c.deps.MinPasswordLength).OK() {
			return c.deps.Errors.WeakPassword
		}
		if !validate.PasswordsMatch(v, c.state.ConfirmValue) {
			return c.deps.Errors.PasswordMismatch
		}
	case FieldEliminarCuenta:
		if !c.state.Acknowledged {
			return c.deps.Errors.AcknowledgementRequired
		}
	}
	return nil
}

// submittableLocked adds the checks made when the button is pressed.
func (c *EditController) submittableLocked() error {
	if err := c.readyLocked(); err != nil {
		return err
	}
	if c.state.Field == FieldPassword && c.state.CurrentPassword == "" {
		return c.deps.Errors.MissingField
	}
	return nil
}

// CanSubmitPassword is the password gate on its own: strong new password and
// a matching, non-empty confirmation.
func CanSubmitPassword(newValue, confirmValue string, minLength int) bool {
	return validate.PasswordStrengthMin(newValue, minLength).OK() && validate.PasswordsMatch(newValue, confirmValue)
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func normalizeEditDeps(deps *EditDeps) {
	if deps.MinUsernameLength <= 0 {
		deps.MinUsernameLength = 3
	}
	if deps.MinPasswordLength <= 0 {
		deps.MinPasswordLength = validate.MinPasswordLength
	}
	if deps.Now == nil {
		deps.Now = defaultNow
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return "" }
	}
	if deps.CurrentUser == nil {
		deps.CurrentUser = func(context.Context) (EditUser, error) { return EditUser{}, deps.Errors.NotAuthenticated }
	}
	notReady := func() error { return deps.Errors.NotAuthenticated }
	if deps.RequestPin == nil {
		deps.RequestPin = func(context.Context, EditUser) error { return notReady() }
	}
	if deps.VerifyPin == nil {
		deps.VerifyPin = func(context.Context, EditUser, string) error { return notReady() }
	}
	if deps.UpdateField == nil {
		deps.UpdateField = func(context.Context, EditUser, string, string) error { return notReady() }
	}
	if deps.ChangePassword == nil {
		deps.ChangePassword = func(context.Context, EditUser, string, string) error { return notReady() }
	}
	if deps.SuspendAccount == nil {
		deps.SuspendAccount = func(context.Context, EditUser) error { return notReady() }
	}
	if deps.ApplyUpdate == nil {
		deps.ApplyUpdate = func(context.Context, string, string) error { return nil }
	}
	if deps.EndSession == nil {
		deps.EndSession = func(context.Context) error { return nil }
	}
	if deps.ScheduleAvailability == nil {
		deps.ScheduleAvailability = func(string) uint64 { return 0 }
	}
	if deps.CancelAvailability == nil {
		deps.CancelAvailability = func() {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
