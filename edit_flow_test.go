package cuenta

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gestionlocal/cuenta/internal/fakebackend"
)

func TestEditUsernameEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginAdmin(t)
	f := env.verifiedEdit(t, FieldUsername)

	if err := f.SetPendingValue("ana.nueva"); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	if a := waitAvailability(t, f, "ana.nueva"); a.Exists || a.Failed {
		t.Fatalf("expected available, got %+v", a)
	}
	if !f.CanSubmit() {
		t.Fatalf("expected submit enabled: %v", f.CheckSubmit())
	}
	if err := submit(t, f); err != nil {
		t.Fatalf("submit: %v", err)
	}

	u, err := env.client.CurrentUser(context.Background())
	if err != nil || u.Username != "ana.nueva" {
		t.Fatalf("session not updated: %+v %v", u, err)
	}
	if p, _ := env.backend.Persona(41); p.Username != "ana.nueva" {
		t.Fatalf("backend not updated: %q", p.Username)
	}
	if f.State().Step != StepIdle {
		t.Fatalf("expected Idle after submit, got %v", f.State().Step)
	}

	events := env.drainEvents(t)
	for _, want := range []string{auditEventEditStarted, auditEventPinRequested, auditEventPinVerified, auditEventConfirmOpened, auditEventMutationSubmitted} {
		if !hasEvent(events, want, true) {
			t.Fatalf("missing audit event %s", want)
		}
	}
}

func TestEditUsernameTakenOffersSuggestions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginAdmin(t)
	f := env.verifiedEdit(t, FieldUsername)

	if err := f.SetPendingValue("luis.perez"); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	a := waitAvailability(t, f, "luis.perez")
	if !a.Exists || len(a.Suggestions) != 3 {
		t.Fatalf("expected taken with suggestions, got %+v", a)
	}
	if err := f.CheckSubmit(); !errors.Is(err, ErrUsernameUnavailable) {
		t.Fatalf("expected ErrUsernameUnavailable, got %v", err)
	}
	if err := f.RequestSubmit(context.Background()); !errors.Is(err, ErrUsernameUnavailable) {
		t.Fatalf("RequestSubmit must refuse a taken username, got %v", err)
	}

	choice := a.Suggestions[0]
	if err := f.ChooseSuggestion(choice); err != nil {
		t.Fatalf("ChooseSuggestion: %v", err)
	}
	waitAvailability(t, f, choice)
	if err := submit(t, f); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if u, _ := env.client.CurrentUser(context.Background()); u.Username != choice {
		t.Fatalf("expected %q, got %q", choice, u.Username)
	}
}

func TestEditUsernameUnverifiedBlocksSubmit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Flow.UsernameCheckDelay = time.Hour
	})
	env.loginAdmin(t)
	f := env.verifiedEdit(t, FieldUsername)

	if err := f.SetPendingValue("ana.libre"); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	if !f.State().Availability.Checking {
		t.Fatalf("expected a pending lookup, got %+v", f.State().Availability)
	}
	if err := f.CheckSubmit(); !errors.Is(err, ErrUsernameUnverified) {
		t.Fatalf("expected ErrUsernameUnverified, got %v", err)
	}

	if err := f.SetPendingValue("ab"); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	if err := f.CheckSubmit(); !errors.Is(err, ErrUsernameTooShort) {
		t.Fatalf("expected ErrUsernameTooShort, got %v", err)
	}
	if !errors.Is(f.CheckSubmit(), ErrValidation) {
		t.Fatal("local check failures must be validation errors")
	}
}

func TestEditEmailAndContacto(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginPublisher(t)
	ctx := context.Background()

	f := env.verifiedEdit(t, FieldEmail)
	if err := f.SetPendingValue("no-es-email"); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	if err := f.RequestSubmit(ctx); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if err := f.SetPendingValue(" luis@nuevo.example.com "); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	if err := submit(t, f); err != nil {
		t.Fatalf("submit email: %v", err)
	}
	if u, _ := env.client.CurrentUser(ctx); u.Email != "luis@nuevo.example.com" {
		t.Fatalf("email not trimmed into session: %q", u.Email)
	}

	f = env.verifiedEdit(t, FieldContacto)
	if err := f.SetPendingValue("11-22"); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	if err := f.CheckSubmit(); !errors.Is(err, ErrPhoneTooShort) {
		t.Fatalf("expected ErrPhoneTooShort, got %v", err)
	}
	if err := f.SetPendingValue("+54 11 2233-4455"); err != nil {
		t.Fatalf("SetPendingValue: %v", err)
	}
	if err := submit(t, f); err != nil {
		t.Fatalf("submit contacto: %v", err)
	}
	if u, _ := env.client.CurrentUser(ctx); u.Contacto != "541122334455" {
		t.Fatalf("expected digits only, got %q", u.Contacto)
	}
	if p, _ := env.backend.Persona(42); p.Contacto != "541122334455" {
		t.Fatalf("backend contacto %q", p.Contacto)
	}
}

func TestEditPasswordChange(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginPublisher(t)
	ctx := context.Background()

	f := env.client.Edit()
	if err := f.Start(ctx, FieldPassword); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.SetPendingValue("Nueva#Clave9"); !errors.Is(err, ErrPinRequired) {
		t.Fatalf("password must wait for the PIN, got %v", err)
	}
	f.Cancel(ctx)

	f = env.verifiedEdit(t, FieldPassword)
	_ = f.SetPendingValue("Nueva#Clave9")
	_ = f.SetConfirmValue("Nueva#Clave8")
	if err := f.CheckSubmit(); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	_ = f.SetConfirmValue("Nueva#Clave9")
	if err := f.RequestSubmit(ctx); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField without current password, got %v", err)
	}

	_ = f.SetCurrentPassword("equivocada")
	err := submit(t, f)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if UserMessage(err) != MsgWrongCurrentPass {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}
	if f.State().Step != StepPinVerified || f.State().PendingValue != "Nueva#Clave9" {
		t.Fatalf("failed submit must keep the verified state: %+v", f.State())
	}

	_ = f.SetCurrentPassword("clave-inicial-42")
	if err := submit(t, f); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if u, _ := env.client.CurrentUser(ctx); u.PasswordChangedAt == "" {
		t.Fatal("expected password_changed_at in session")
	}
	if err := env.client.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	env.login(t, "luis.perez", "Nueva#Clave9")
}

func TestEditWrongPinKeepsState(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginPublisher(t)
	ctx := context.Background()

	f := env.client.Edit()
	_ = f.Start(ctx, FieldEmail)
	if err := f.RequestPin(ctx); err != nil {
		t.Fatalf("RequestPin: %v", err)
	}
	wrong := "000000"
	if env.backend.LastPIN() == wrong {
		wrong = "111111"
	}
	err := f.VerifyPin(ctx, wrong)
	if !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("expected ErrInvalidPin, got %v", err)
	}
	if UserMessage(err) != "PIN inválido o expirado." {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}
	if f.State().Step != StepAwaitingPinEntry {
		t.Fatalf("expected AwaitingPinEntry, got %v", f.State().Step)
	}
	if err := f.VerifyPin(ctx, "12a4"); !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("non-digit pin must be rejected locally, got %v", err)
	}

	if err := f.RequestPin(ctx); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if err := f.VerifyPin(ctx, env.backend.LastPIN()); err != nil {
		t.Fatalf("VerifyPin after resend: %v", err)
	}
}

func TestEditSubmitWithoutConfirmation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginPublisher(t)
	ctx := context.Background()

	f := env.verifiedEdit(t, FieldEmail)
	_ = f.SetPendingValue("luis@otro.example.com")
	if err := f.ConfirmSubmit(ctx); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if err := f.RequestSubmit(ctx); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if err := f.DismissConfirm(); err != nil {
		t.Fatalf("DismissConfirm: %v", err)
	}
	if err := f.ConfirmSubmit(ctx); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("dismissed confirmation must block submit, got %v", err)
	}
}

func TestEditDeactivateAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginPublisher(t)
	ctx := context.Background()

	f := env.client.Edit()
	if err := f.Start(ctx, FieldEliminarCuenta); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.RequestPin(ctx); !errors.Is(err, ErrAcknowledgementRequired) {
		t.Fatalf("expected ErrAcknowledgementRequired, got %v", err)
	}
	f.Cancel(ctx)

	f = env.verifiedEdit(t, FieldEliminarCuenta)
	if err := submit(t, f); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !f.Closed() {
		t.Fatal("flow must be closed after deactivation")
	}
	if env.nav.calls.Load() != 1 {
		t.Fatalf("expected one navigation to login, got %d", env.nav.calls.Load())
	}
	if _, err := env.client.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("session must be cleared, got %v", err)
	}
	if p, _ := env.backend.Persona(42); p.Estado != fakebackend.EstadoBaja {
		t.Fatalf("expected BAJA, got %q", p.Estado)
	}
	if err := f.Start(ctx, FieldEmail); err == nil {
		t.Fatal("Start must fail after deactivation")
	}

	_, err := env.client.Login(ctx, "luis.perez", "clave-inicial-42")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deactivated account must not log in, got %v", err)
	}

	events := env.drainEvents(t)
	if !hasEvent(events, auditEventAccountSuspended, true) {
		t.Fatal("missing account_suspended event")
	}
}

func TestEditReopensOnNextLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loginPublisher(t)
	ctx := context.Background()

	f := env.verifiedEdit(t, FieldEliminarCuenta)
	if err := submit(t, f); err != nil {
		t.Fatalf("submit: %v", err)
	}
	env.loginAdmin(t)
	if f.Closed() {
		t.Fatal("a new login must reopen the flow")
	}
	if err := f.Start(ctx, FieldEmail); err != nil {
		t.Fatalf("Start after new login: %v", err)
	}
}

func TestEditRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)
	err := env.client.Edit().Start(context.Background(), FieldEmail)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	env.loginPublisher(t)
	if err := env.client.Edit().Start(context.Background(), "estado"); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}

func TestEditPinRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, func(cfg *Config, b *Builder) {
		cfg.PinLimit.Enabled = true
		cfg.PinLimit.MaxRequests = 2
		cfg.PinLimit.MaxVerifyAttempts = 2
		b.WithRedis(rdb)
	})
	env.loginPublisher(t)
	ctx := context.Background()

	f := env.client.Edit()
	_ = f.Start(ctx, FieldEmail)
	if err := f.RequestPin(ctx); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := f.RequestPin(ctx); err != nil {
		t.Fatalf("resend: %v", err)
	}
	err := f.RequestPin(ctx)
	if !errors.Is(err, ErrPinRateLimited) {
		t.Fatalf("expected ErrPinRateLimited, got %v", err)
	}
	if !strings.HasPrefix(UserMessage(err), "Demasiados intentos") {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}
	if f.State().Step != StepAwaitingPinEntry {
		t.Fatalf("rate limit must not move the step, got %v", f.State().Step)
	}

	wrong := "000000"
	if env.backend.LastPIN() == wrong {
		wrong = "111111"
	}
	_ = f.VerifyPin(ctx, wrong)
	_ = f.VerifyPin(ctx, wrong)
	if err := f.VerifyPin(ctx, env.backend.LastPIN()); !errors.Is(err, ErrPinRateLimited) {
		t.Fatalf("expected verify attempts to be capped, got %v", err)
	}
	if got := env.client.MetricsSnapshot().Counters[MetricPinRateLimited]; got != 2 {
		t.Fatalf("expected 2 rate-limited counts, got %d", got)
	}
}
