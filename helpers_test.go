package cuenta

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gestionlocal/cuenta/internal/fakebackend"
	"github.com/gestionlocal/cuenta/password"
)

type countingNavigator struct {
	calls atomic.Int32
}

func (n *countingNavigator) ToLogin() { n.calls.Add(1) }

type testEnv struct {
	client  *Client
	backend *fakebackend.Backend
	outbox  *fakebackend.Outbox
	nav     *countingNavigator
	sink    *ChannelSink
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.Timeout = 5 * time.Second
	cfg.API.RequestsPerSecond = 0
	cfg.Flow.UsernameCheckDelay = 5 * time.Millisecond
	cfg.Flow.UsernameCheckTimeout = time.Second
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 512
	return cfg
}

func newTestBackend(t *testing.T) (*fakebackend.Backend, *fakebackend.Outbox, string) {
	t.Helper()
	argon, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("argon: %v", err)
	}
	outbox := fakebackend.NewOutbox()
	b, err := fakebackend.New(fakebackend.Options{
		Mailer:    outbox,
		Passwords: password.NewChecker(argon),
	}, fakebackend.DefaultSeed())
	if err != nil {
		t.Fatalf("fakebackend: %v", err)
	}
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, outbox, srv.URL
}

// newTestEnv builds a client against a fresh backend. mutate, when set, may
// adjust the config or the builder before Build.
func newTestEnv(t *testing.T, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()
	b, outbox, url := newTestBackend(t)

	cfg := testConfig(url)
	nav := &countingNavigator{}
	sink := NewChannelSink(512)
	builder := New().WithAuditSink(sink).WithNavigator(nav)
	if mutate != nil {
		mutate(&cfg, builder)
	}
	client, err := builder.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(client.Close)
	return &testEnv{client: client, backend: b, outbox: outbox, nav: nav, sink: sink}
}

func (e *testEnv) login(t *testing.T, username, pass string) User {
	t.Helper()
	u, err := e.client.Login(context.Background(), username, pass)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return u
}

func (e *testEnv) loginAdmin(t *testing.T) User {
	return e.login(t, "ana.gomez", "clave-inicial-41")
}

func (e *testEnv) loginPublisher(t *testing.T) User {
	return e.login(t, "luis.perez", "clave-inicial-42")
}

// verifiedEdit starts an edit of field and walks it up to PinVerified.
func (e *testEnv) verifiedEdit(t *testing.T, field string) *EditFlow {
	t.Helper()
	ctx := context.Background()
	f := e.client.Edit()
	if err := f.Start(ctx, field); err != nil {
		t.Fatalf("Start(%s): %v", field, err)
	}
	if field == FieldEliminarCuenta {
		if err := f.Acknowledge(); err != nil {
			t.Fatalf("Acknowledge: %v", err)
		}
	}
	if err := f.RequestPin(ctx); err != nil {
		t.Fatalf("RequestPin: %v", err)
	}
	if err := f.VerifyPin(ctx, e.backend.LastPIN()); err != nil {
		t.Fatalf("VerifyPin: %v", err)
	}
	if got := f.State().Step; got != StepPinVerified {
		t.Fatalf("expected PinVerified, got %v", got)
	}
	return f
}

func submit(t *testing.T, f *EditFlow) error {
	t.Helper()
	ctx := context.Background()
	if err := f.RequestSubmit(ctx); err != nil {
		return err
	}
	return f.ConfirmSubmit(ctx)
}

// waitAvailability blocks until the lookup for candidate finished.
func waitAvailability(t *testing.T, f *EditFlow, candidate string) AvailabilityState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		a := f.State().Availability
		if a.Candidate == candidate && (a.Checked || a.Failed) {
			return a
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("availability for %q never completed: %+v", candidate, f.State().Availability)
	return AvailabilityState{}
}

// drainEvents collects the audit events emitted so far.
func (e *testEnv) drainEvents(t *testing.T) []AuditEvent {
	t.Helper()
	var out []AuditEvent
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-e.sink.Events():
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
}

func hasEvent(events []AuditEvent, eventType string, success bool) bool {
	for _, ev := range events {
		if ev.EventType == eventType && ev.Success == success {
			return true
		}
	}
	return false
}
