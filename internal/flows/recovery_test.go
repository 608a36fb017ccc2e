package flows

import (
	"context"
	"errors"
	"testing"
)

type fakeRecoveryBackend struct {
	emails     map[string]string
	pin        string
	pinTargets []RecoveryTarget
	queries    []RecoveryQuery
	sent       []string
	resets     map[string]string
}

func newTestRecovery(t *testing.T) (*RecoveryController, *fakeRecoveryBackend) {
	t.Helper()
	b := &fakeRecoveryBackend{
		emails: map[string]string{"elias": "elias.gomez@dominio.com"},
		pin:    "654321",
		resets: map[string]string{},
	}
	deps := RecoveryDeps{
		NewID: func() string { return "rec" },
		IdentifyUser: func(_ context.Context, username string) (string, error) {
			email, ok := b.emails[username]
			if !ok {
				return "", errNotFound
			}
			return email, nil
		},
		RecoverIdentity: func(_ context.Context, q RecoveryQuery) (string, error) {
			b.queries = append(b.queries, q)
			if q.Method == RecoverByPhone && q.Telefono == "1122334455" {
				return "elias.gomez@dominio.com", nil
			}
			if q.Method == RecoverByPersonaID && q.PersonaID == "42" && q.NumeroCongregacion == "1234" {
				return "elias.gomez@dominio.com", nil
			}
			return "", errNotFound
		},
		RequestPin: func(_ context.Context, target RecoveryTarget) error {
			b.pinTargets = append(b.pinTargets, target)
			return nil
		},
		VerifyPin: func(_ context.Context, pin string) error {
			if pin != b.pin {
				return errInvalidPin
			}
			return nil
		},
		SendUsername: func(_ context.Context, email string) error {
			b.sent = append(b.sent, email)
			return nil
		},
		ResetPassword: func(_ context.Context, username, next string) error {
			b.resets[username] = next
			return nil
		},
		Errors: testErrors(),
	}
	return NewRecoveryController(deps), b
}

func TestRecoveryForgotPassword(t *testing.T) {
	ctx := context.Background()
	c, b := newTestRecovery(t)

	if err := c.IdentifyUser(ctx, " elias "); err != nil {
		t.Fatalf("IdentifyUser: %v", err)
	}
	st := c.State()
	if st.Step != StepAwaitingPinRequest || st.MaskedEmail != "e*********z@dominio.com" {
		t.Fatalf("unexpected state after identify: %+v", st)
	}
	if err := c.ResetPassword(ctx, "Nueva123!", "Nueva123!"); !errors.Is(err, errPinRequired) {
		t.Fatalf("expected pin required, got %v", err)
	}
	if err := c.RequestPin(ctx); err != nil {
		t.Fatalf("RequestPin: %v", err)
	}
	if len(b.pinTargets) != 1 || b.pinTargets[0].Username != "elias" {
		t.Fatalf("unexpected pin target: %+v", b.pinTargets)
	}
	if err := c.VerifyPin(ctx, "111111"); !errors.Is(err, errInvalidPin) {
		t.Fatalf("expected invalid pin, got %v", err)
	}
	if err := c.VerifyPin(ctx, "654321"); err != nil {
		t.Fatalf("VerifyPin: %v", err)
	}
	if err := c.ResetPassword(ctx, "nueva", "nueva"); !errors.Is(err, errWeak) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := c.ResetPassword(ctx, "Nueva123!", "Nueva123?"); !errors.Is(err, errMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := c.ResetPassword(ctx, "Nueva123!", "Nueva123!"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if b.resets["elias"] != "Nueva123!" {
		t.Fatalf("reset not sent: %+v", b.resets)
	}
	if st := c.State(); st.Step != StepIdle || st.Email != "" {
		t.Fatalf("expected recovery to end, got %+v", st)
	}
}

func TestRecoveryForgotUsernameByPhone(t *testing.T) {
	ctx := context.Background()
	c, b := newTestRecovery(t)

	if err := c.RecoverIdentity(ctx, RecoveryQuery{Method: RecoverByPhone, Telefono: "123"}); !errors.Is(err, errPhone) {
		t.Fatalf("expected phone too short, got %v", err)
	}
	if err := c.RecoverIdentity(ctx, RecoveryQuery{Method: RecoverByPhone, Telefono: "(11) 2233-4455"}); err != nil {
		t.Fatalf("RecoverIdentity: %v", err)
	}
	if b.queries[0].Telefono != "1122334455" {
		t.Fatalf("phone not normalized: %+v", b.queries[0])
	}
	if err := c.RequestPin(ctx); err != nil {
		t.Fatalf("RequestPin: %v", err)
	}
	if err := c.VerifyPin(ctx, "654321"); err != nil {
		t.Fatalf("VerifyPin: %v", err)
	}
	if err := c.ResetPassword(ctx, "Nueva123!", "Nueva123!"); !errors.Is(err, errTransition) {
		t.Fatalf("reset needs a username, got %v", err)
	}
	if err := c.SendUsername(ctx); err != nil {
		t.Fatalf("SendUsername: %v", err)
	}
	if len(b.sent) != 1 || b.sent[0] != "elias.gomez@dominio.com" {
		t.Fatalf("unexpected sends: %v", b.sent)
	}
}

func TestRecoveryByPersonaID(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRecovery(t)

	if err := c.RecoverIdentity(ctx, RecoveryQuery{Method: RecoverByPersonaID, PersonaID: "42"}); !errors.Is(err, errMissing) {
		t.Fatalf("expected missing field, got %v", err)
	}
	if err := c.RecoverIdentity(ctx, RecoveryQuery{Method: "dni"}); !errors.Is(err, errInvalidField) {
		t.Fatalf("expected invalid method, got %v", err)
	}
	if err := c.RecoverIdentity(ctx, RecoveryQuery{Method: RecoverByPersonaID, PersonaID: "42", NumeroCongregacion: "9999"}); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if st := c.State(); st.Step != StepIdle || st.Loading {
		t.Fatalf("failed identify must leave idle state: %+v", st)
	}
	if err := c.RecoverIdentity(ctx, RecoveryQuery{Method: RecoverByPersonaID, PersonaID: "42", NumeroCongregacion: "1234"}); err != nil {
		t.Fatalf("RecoverIdentity: %v", err)
	}
	if c.State().Step != StepAwaitingPinRequest {
		t.Fatalf("unexpected step %s", c.State().Step)
	}
}

func TestRecoveryUnknownUserAndCancel(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRecovery(t)

	if err := c.IdentifyUser(ctx, "nadie"); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := c.RequestPin(ctx); !errors.Is(err, errTransition) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if err := c.IdentifyUser(ctx, "elias"); err != nil {
		t.Fatalf("IdentifyUser: %v", err)
	}
	c.Cancel(ctx)
	c.Cancel(ctx)
	if st := c.State(); st.Step != StepIdle || st.Email != "" {
		t.Fatalf("expected reset, got %+v", st)
	}
	if err := c.SendUsername(ctx); !errors.Is(err, errTransition) {
		t.Fatalf("expected transition error after cancel, got %v", err)
	}
}
