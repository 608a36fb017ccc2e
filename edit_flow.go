package cuenta

import (
	"context"
	"time"

	"github.com/gestionlocal/cuenta/internal"
	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/internal/availability"
	"github.com/gestionlocal/cuenta/internal/flows"
	"github.com/gestionlocal/cuenta/session"
)

// EditFlow changes one sensitive field behind an emailed PIN:
//
//	Start -> RequestPin -> VerifyPin -> Set* -> RequestSubmit -> ConfirmSubmit
//
// For FieldEliminarCuenta, Acknowledge must be called before RequestPin. A
// successful deactivation clears the session and closes the flow until the
// next Login.
type EditFlow struct {
	client  *Client
	ctrl    *flows.EditController
	checker *availability.Checker
}

func newEditFlow(c *Client) *EditFlow {
	f := &EditFlow{client: c}
	f.checker = availability.New(availability.Config{
		Delay:   c.config.Flow.UsernameCheckDelay,
		Timeout: c.config.Flow.UsernameCheckTimeout,
	}, f.lookupUsername, func(out availability.Outcome) {
		f.ctrl.HandleAvailability(out)
	})
	f.ctrl = flows.NewEditController(c.editFlowDeps(f.checker))
	return f
}

func (f *EditFlow) State() EditState { return f.ctrl.State() }

// Start opens an edit of field and discards any edit in progress.
func (f *EditFlow) Start(ctx context.Context, field string) error {
	return f.ctrl.Start(ctx, field)
}

// Acknowledge accepts that deactivation cannot be undone.
func (f *EditFlow) Acknowledge() error { return f.ctrl.Acknowledge() }

// RequestPin emails a PIN to the account. Calling it again while waiting for
// the PIN resends it.
func (f *EditFlow) RequestPin(ctx context.Context) error { return f.ctrl.RequestPin(ctx) }

func (f *EditFlow) VerifyPin(ctx context.Context, pin string) error {
	return f.ctrl.VerifyPin(ctx, pin)
}

// SetPendingValue sets the new value. For the username it also schedules the
// debounced availability check.
func (f *EditFlow) SetPendingValue(v string) error { return f.ctrl.SetPendingValue(v) }

// SetConfirmValue sets the repeated new password.
func (f *EditFlow) SetConfirmValue(v string) error { return f.ctrl.SetConfirmValue(v) }

// SetCurrentPassword sets the password the backend checks before changing it.
func (f *EditFlow) SetCurrentPassword(v string) error { return f.ctrl.SetCurrentPassword(v) }

// ChooseSuggestion takes one of the alternatives offered for a taken username.
func (f *EditFlow) ChooseSuggestion(s string) error { return f.ctrl.ChooseSuggestion(s) }

// CheckSubmit returns why the value cannot be submitted yet, or nil.
func (f *EditFlow) CheckSubmit() error { return f.ctrl.CheckSubmit() }

// CanSubmit is CheckSubmit as a boolean, for enabling a save button.
func (f *EditFlow) CanSubmit() bool { return f.ctrl.CheckSubmit() == nil }

// RequestSubmit opens the confirmation step.
func (f *EditFlow) RequestSubmit(ctx context.Context) error { return f.ctrl.RequestSubmit(ctx) }

// DismissConfirm backs out of the confirmation step, keeping the value.
func (f *EditFlow) DismissConfirm() error { return f.ctrl.DismissConfirm() }

// ConfirmSubmit sends the change to the backend.
func (f *EditFlow) ConfirmSubmit(ctx context.Context) error { return f.ctrl.ConfirmSubmit(ctx) }

// Cancel discards the edit. Responses still in flight are dropped.
func (f *EditFlow) Cancel(ctx context.Context) { f.ctrl.Cancel(ctx) }

// Closed reports whether the account was deactivated through this flow.
func (f *EditFlow) Closed() bool { return f.ctrl.Closed() }

func (f *EditFlow) close() {
	f.checker.Close()
}

func (f *EditFlow) lookupUsername(ctx context.Context, candidate string) (availability.Result, error) {
	rec, err := f.client.session(ctx)
	if err != nil {
		return availability.Result{}, err
	}
	res, err := f.client.api.CheckUsername(ctx, candidate, rec.User.PersonaID)
	if err != nil {
		return availability.Result{}, mapAPIError(OpCheckUsername, err)
	}
	return availability.Result{Exists: res.Exists, Suggestions: res.Suggestions}, nil
}

func (c *Client) editFlowDeps(checker *availability.Checker) flows.EditDeps {
	return flows.EditDeps{
		MinUsernameLength: c.config.Flow.MinUsernameLength,
		MinPasswordLength: c.config.Flow.MinPasswordLength,
		Now:               func() time.Time { return time.Now().UTC() },
		NewID:             internal.NewFlowID,

		CurrentUser:    c.editUser,
		RequestPin:     c.requestEditPin,
		VerifyPin:      c.verifyEditPin,
		UpdateField:    c.updateField,
		ChangePassword: c.changePassword,
		SuspendAccount: c.suspendAccount,
		ApplyUpdate:    c.applyUpdate,
		EndSession:     c.endSession,

		ScheduleAvailability: checker.Schedule,
		CancelAvailability:   checker.Cancel,

		Warn:      c.logger.Warn,
		MetricInc: func(id int) { c.metricInc(MetricID(id)) },
		EmitAudit: c.flowAudit,

		Metrics: flows.EditMetrics{
			FlowStarted:         int(MetricEditStarted),
			FlowCancelled:       int(MetricEditCancelled),
			PinRequested:        int(MetricPinRequested),
			PinRequestFailed:    int(MetricPinRequestFailed),
			PinVerified:         int(MetricPinVerified),
			PinRejected:         int(MetricPinRejected),
			SubmitSuccess:       int(MetricSubmitSuccess),
			SubmitFailure:       int(MetricSubmitFailure),
			SubmitConflict:      int(MetricSubmitConflict),
			StaleDiscarded:      int(MetricStaleDiscarded),
			AccountSuspended:    int(MetricAccountSuspended),
			AvailabilityChecked: int(MetricAvailabilityChecked),
			AvailabilityFailed:  int(MetricAvailabilityFailed),
		},
		Events: flows.EditEvents{
			Started:            auditEventEditStarted,
			Cancelled:          auditEventEditCancelled,
			PinRequested:       auditEventPinRequested,
			PinVerified:        auditEventPinVerified,
			ConfirmOpened:      auditEventConfirmOpened,
			Submitted:          auditEventMutationSubmitted,
			AccountSuspended:   auditEventAccountSuspended,
			AvailabilityFailed: auditEventAvailabilityFailed,
		},
		Errors: flowErrors(),
	}
}

func flowErrors() flows.Errors {
	return flows.Errors{
		NotAuthenticated:        ErrNotAuthenticated,
		InvalidField:            ErrInvalidField,
		InvalidTransition:       ErrInvalidTransition,
		Busy:                    ErrBusy,
		Stale:                   ErrStale,
		FlowClosed:              ErrFlowClosed,
		AcknowledgementRequired: ErrAcknowledgementRequired,
		ConfirmationRequired:    ErrConfirmationRequired,
		PinRequired:             ErrPinRequired,
		MissingField:            ErrMissingField,
		InvalidEmail:            ErrInvalidEmail,
		PhoneTooShort:           ErrPhoneTooShort,
		WeakPassword:            ErrWeakPassword,
		PasswordMismatch:        ErrPasswordMismatch,
		UsernameTooShort:        ErrUsernameTooShort,
		UsernameUnavailable:     ErrUsernameUnavailable,
		UsernameUnverified:      ErrUsernameUnverified,
		InvalidPin:              ErrInvalidPin,
		Conflict:                ErrConflict,
		NotFound:                ErrNotFound,
	}
}

func (c *Client) editUser(ctx context.Context) (flows.EditUser, error) {
	rec, err := c.session(ctx)
	if err != nil {
		return flows.EditUser{}, err
	}
	u := rec.User
	return flows.EditUser{
		ID:                 u.ID,
		PersonaID:          u.PersonaID,
		Username:           u.Username,
		Email:              u.Email,
		NumeroCongregacion: u.NumeroCongregacion,
		CongregacionNombre: u.CongregacionNombre,
	}, nil
}

// congregacion is what the PIN email names the congregation by: its number
// when known, otherwise its name.
func congregacion(u flows.EditUser) string {
	if u.NumeroCongregacion != "" {
		return u.NumeroCongregacion
	}
	return u.CongregacionNombre
}

func pinIdentity(u flows.EditUser) string {
	return "persona:" + api.PersonaID(u.PersonaID)
}

func (c *Client) requestEditPin(ctx context.Context, u flows.EditUser) error {
	if err := c.checkPinLimit(ctx, OpRequestPin, pinIdentity(u), c.pinLimiter.CheckRequest); err != nil {
		return err
	}
	err := c.api.RequestPin(ctx, api.PinRequest{
		Email:        u.Email,
		Username:     u.Username,
		Congregacion: congregacion(u),
	})
	return mapAPIError(OpRequestPin, err)
}

func (c *Client) verifyEditPin(ctx context.Context, u flows.EditUser, pin string) error {
	identity := pinIdentity(u)
	if err := c.checkPinLimit(ctx, OpVerifyPin, identity, c.pinLimiter.CheckVerify); err != nil {
		return err
	}
	if err := c.api.VerifyPin(ctx, pin); err != nil {
		return mapAPIError(OpVerifyPin, err)
	}
	if err := c.pinLimiter.ResetVerify(ctx, identity); err != nil {
		c.logger.Warn("pin limiter reset failed", "err", err)
	}
	return nil
}

func (c *Client) checkPinLimit(ctx context.Context, op, identity string, check func(context.Context, string) error) error {
	if c.pinLimiter == nil {
		return nil
	}
	if err := check(ctx, identity); err != nil {
		err = mapLimiterError(op, err)
		c.metricInc(MetricPinRateLimited)
		c.emitAudit(ctx, auditEventPinRateLimited, false, "", "", "", err, func() map[string]string {
			return map[string]string{"op": op}
		})
		return err
	}
	return nil
}

func (c *Client) updateField(ctx context.Context, u flows.EditUser, field, value string) error {
	err := c.api.UpdateProfile(ctx, api.UpdateProfileRequest{
		PersonaID: api.PersonaID(u.PersonaID),
		UsuarioID: u.ID,
		Campo:     field,
		Valor:     value,
	})
	return mapAPIError(OpUpdateProfile, err)
}

func (c *Client) changePassword(ctx context.Context, u flows.EditUser, current, next string) error {
	err := c.api.ResetPassword(ctx, api.ResetPasswordRequest{
		Username:        u.Username,
		CurrentPassword: current,
		NewPassword:     next,
		PersonaID:       api.PersonaID(u.PersonaID),
	})
	return mapAPIError(OpResetPassword, err)
}

func (c *Client) suspendAccount(ctx context.Context, u flows.EditUser) error {
	err := c.api.SuspendAccount(ctx, api.SuspendRequest{
		PersonaID: api.PersonaID(u.PersonaID),
		UsuarioID: u.ID,
	})
	return mapAPIError(OpSuspendAccount, err)
}

// applyUpdate mirrors a successful mutation into the session record.
func (c *Client) applyUpdate(ctx context.Context, field, value string) error {
	var p session.Patch
	switch field {
	case FieldUsername:
		p.Username = session.String(value)
	case FieldEmail:
		p.Email = session.String(value)
	case FieldContacto:
		p.Contacto = session.String(value)
	case FieldPassword:
		p.PasswordChangedAt = session.String(time.Now().UTC().Format(time.RFC3339))
	default:
		return nil
	}
	return c.replaceSession(ctx, p)
}

func (c *Client) endSession(ctx context.Context) error {
	err := c.store.Clear(ctx)
	if err != nil {
		c.metricInc(MetricSessionWriteFailure)
		c.logger.Warn("session clear failed after deactivation", "err", err)
		err = mapSessionError(err)
	}
	c.toLogin()
	return err
}
