package cuenta

import (
	"context"
	"time"

	"github.com/gestionlocal/cuenta/internal"
	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/internal/flows"
)

// RecoveryFlow lets a logged-out member recover the username or set a new
// password:
//
//	IdentifyUser | RecoverIdentity -> RequestPin -> VerifyPin -> SendUsername | ResetPassword
//
// ResetPassword is only available when the recovery started from a username.
type RecoveryFlow struct {
	client *Client
	ctrl   *flows.RecoveryController
}

func newRecoveryFlow(c *Client) *RecoveryFlow {
	f := &RecoveryFlow{client: c}
	f.ctrl = flows.NewRecoveryController(c.recoveryFlowDeps(f))
	return f
}

// State returns a snapshot with the account email masked.
func (f *RecoveryFlow) State() RecoveryState {
	s := f.ctrl.State()
	return RecoveryState{
		ID:            s.ID,
		Step:          s.Step,
		Method:        s.Method,
		Username:      s.Username,
		MaskedEmail:   s.MaskedEmail,
		PinVerifiedAt: s.PinVerifiedAt,
		Loading:       s.Loading,
	}
}

// IdentifyUser starts a recovery from a known username.
func (f *RecoveryFlow) IdentifyUser(ctx context.Context, username string) error {
	return f.ctrl.IdentifyUser(ctx, username)
}

// RecoverIdentity starts a recovery when the username is forgotten.
func (f *RecoveryFlow) RecoverIdentity(ctx context.Context, q RecoveryQuery) error {
	return f.ctrl.RecoverIdentity(ctx, q)
}

func (f *RecoveryFlow) RequestPin(ctx context.Context) error { return f.ctrl.RequestPin(ctx) }

func (f *RecoveryFlow) VerifyPin(ctx context.Context, pin string) error {
	return f.ctrl.VerifyPin(ctx, pin)
}

// SendUsername emails the username, persona id and congregation to the
// account email.
func (f *RecoveryFlow) SendUsername(ctx context.Context) error { return f.ctrl.SendUsername(ctx) }

func (f *RecoveryFlow) ResetPassword(ctx context.Context, newPassword, confirm string) error {
	return f.ctrl.ResetPassword(ctx, newPassword, confirm)
}

func (f *RecoveryFlow) Cancel(ctx context.Context) { f.ctrl.Cancel(ctx) }

func (f *RecoveryFlow) pinIdentity() string {
	return "email:" + f.ctrl.State().Email
}

func (c *Client) recoveryFlowDeps(f *RecoveryFlow) flows.RecoveryDeps {
	return flows.RecoveryDeps{
		MinPasswordLength: c.config.Flow.MinPasswordLength,
		Now:               func() time.Time { return time.Now().UTC() },
		NewID:             internal.NewFlowID,

		IdentifyUser: func(ctx context.Context, username string) (string, error) {
			email, err := c.api.IdentifyUser(ctx, username)
			return email, mapAPIError(OpIdentifyUser, err)
		},
		RecoverIdentity: func(ctx context.Context, q flows.RecoveryQuery) (string, error) {
			email, err := c.api.RecoverUserID(ctx, api.RecoverRequest{
				Metodo:             q.Method,
				PersonaID:          q.PersonaID,
				NumeroCongregacion: q.NumeroCongregacion,
				Telefono:           q.Telefono,
			})
			return email, mapAPIError(OpRecoverUserID, err)
		},
		RequestPin: func(ctx context.Context, t flows.RecoveryTarget) error {
			if err := c.checkPinLimit(ctx, OpRequestPin, "email:"+t.Email, c.pinLimiter.CheckRequest); err != nil {
				return err
			}
			err := c.api.RequestPin(ctx, api.PinRequest{Email: t.Email, Username: t.Username})
			return mapAPIError(OpRequestPin, err)
		},
		VerifyPin: func(ctx context.Context, pin string) error {
			identity := f.pinIdentity()
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
		},
		SendUsername: func(ctx context.Context, email string) error {
			return mapAPIError(OpSendUsername, c.api.SendUsername(ctx, email))
		},
		ResetPassword: func(ctx context.Context, username, newPassword string) error {
			err := c.api.ResetPassword(ctx, api.ResetPasswordRequest{
				Username:    username,
				NewPassword: newPassword,
			})
			return mapAPIError(OpResetPassword, err)
		},

		MetricInc: func(id int) { c.metricInc(MetricID(id)) },
		EmitAudit: c.flowAudit,

		Metrics: flows.RecoveryMetrics{
			IdentifySuccess:   int(MetricRecoveryIdentified),
			IdentifyFailure:   int(MetricRecoveryFailed),
			PinRequested:      int(MetricPinRequested),
			PinRequestFailed:  int(MetricPinRequestFailed),
			PinVerified:       int(MetricPinVerified),
			PinRejected:       int(MetricPinRejected),
			UsernameSent:      int(MetricRecoveryUsernameSent),
			PasswordReset:     int(MetricRecoveryPasswordReset),
			ActionFailure:     int(MetricRecoveryFailed),
			StaleDiscarded:    int(MetricStaleDiscarded),
			RecoveryCancelled: int(MetricRecoveryCancelled),
		},
		Events: flows.RecoveryEvents{
			Identified:    auditEventRecoveryIdentified,
			PinRequested:  auditEventRecoveryPinRequested,
			PinVerified:   auditEventRecoveryPinVerified,
			UsernameSent:  auditEventRecoveryUsernameSent,
			PasswordReset: auditEventRecoveryPasswordReset,
			Cancelled:     auditEventRecoveryCancelled,
		},
		Errors: flowErrors(),
	}
}
