package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gestionlocal/cuenta/internal/fakebackend"
)

// scriptReader answers one line per Read, computing it only when asked so a
// PIN issued mid-command can be typed back.
type scriptReader struct {
	lines []func() string
}

func (r *scriptReader) Read(p []byte) (int, error) {
	if len(r.lines) == 0 {
		return 0, io.EOF
	}
	line := r.lines[0]() + "\n"
	r.lines = r.lines[1:]
	return copy(p, line), nil
}

func literal(v string) func() string { return func() string { return v } }

type cliEnv struct {
	backend *fakebackend.Backend
	outbox  *fakebackend.Outbox
	url     string
	session string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("CUENTA_USERNAME_CHECK_DELAY", "5ms")
	t.Setenv("CUENTA_API_RPS", "0")
	outbox := fakebackend.NewOutbox()
	b, err := fakebackend.New(fakebackend.Options{Mailer: outbox}, fakebackend.DefaultSeed())
	if err != nil {
		t.Fatalf("fakebackend: %v", err)
	}
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return &cliEnv{
		backend: b,
		outbox:  outbox,
		url:     srv.URL,
		session: filepath.Join(t.TempDir(), "session"),
	}
}

func (e *cliEnv) run(t *testing.T, input []func() string, args ...string) (string, error) {
	t.Helper()
	root, a := newRootCmd()
	var out bytes.Buffer
	root.SetArgs(append([]string{"--api", e.url, "--session-file", e.session, "--redis", ""}, args...))
	root.SetIn(&scriptReader{lines: input})
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	a.close()
	return out.String(), err
}

func TestCLILoginWhoamiLogout(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, nil, "login", "ana.gomez", "-p", "clave-inicial-41")
	if err != nil || !strings.Contains(out, "Hola, Gomez Ana (Talar)") {
		t.Fatalf("login: %q %v", out, err)
	}
	out, err = env.run(t, nil, "whoami")
	if err != nil || !strings.Contains(out, "ana.gomez@example.com") || !strings.Contains(out, "administrador local") {
		t.Fatalf("whoami: %q %v", out, err)
	}
	out, err = env.run(t, nil, "logout")
	if err != nil || !strings.Contains(out, "Sesión cerrada") {
		t.Fatalf("logout: %q %v", out, err)
	}
	out, err = env.run(t, nil, "whoami")
	if err == nil || !strings.Contains(out, "Iniciá sesión") {
		t.Fatalf("whoami after logout: %q %v", out, err)
	}
}

func TestCLIMetricsFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "cuenta.prom")

	if _, err := env.run(t, nil, "--metrics-file", path, "login", "ana.gomez", "-p", "clave-inicial-41"); err != nil {
		t.Fatalf("login: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), "cuenta_login_success_total 1") {
		t.Fatalf("expected the login counter, got:\n%s", data)
	}
	if strings.Contains(string(data), "cuenta_login_failure_total") {
		t.Fatalf("zero counters must be left out, got:\n%s", data)
	}
}

func TestCLIWrongPassword(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, []func() string{literal("mala")}, "login", "luis.perez")
	if err == nil || !strings.Contains(out, "Clave incorrecta.") {
		t.Fatalf("expected a rejected login, got %q %v", out, err)
	}
}

func TestCLIEditContacto(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, nil, "login", "luis.perez", "-p", "clave-inicial-42"); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := env.run(t, []func() string{
		literal("000000"),
		env.backend.LastPIN,
		literal("123"),
		literal("11 6666-7777"),
		literal("s"),
	}, "editar", "contacto")
	if err != nil {
		t.Fatalf("editar: %q %v", out, err)
	}
	for _, want := range []string{"PIN inválido o expirado.", "El teléfono debe tener al menos 8 dígitos.", "Actualizado correctamente."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}
	if p, _ := env.backend.Persona(42); p.Contacto != "1166667777" {
		t.Fatalf("backend contacto %q", p.Contacto)
	}
}

func TestCLIRecoverPassword(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, []func() string{
		env.backend.LastPIN,
		literal("debil"),
		literal("debil"),
		literal("Otra#Clave7"),
		literal("Otra#Clave7"),
	}, "recuperar", "clave", "luis.perez")
	if err != nil || !strings.Contains(out, "Contraseña actualizada") {
		t.Fatalf("recuperar: %q %v", out, err)
	}
	if !strings.Contains(out, "l********z@example.com") {
		t.Fatalf("masked email missing:\n%s", out)
	}
	if _, err := env.run(t, nil, "login", "luis.perez", "-p", "Otra#Clave7"); err != nil {
		t.Fatalf("login with the new password: %v", err)
	}
}

func TestCLIPublicationsAndBroadcast(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, nil, "login", "ana.gomez", "-p", "clave-inicial-41"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := env.run(t, nil, "publicaciones")
	if err != nil || !strings.Contains(out, "La Atalaya") {
		t.Fatalf("publicaciones: %q %v", out, err)
	}
	out, err = env.run(t, []func() string{literal("Revisen los enlaces")}, "seguridad", "difundir", "Phishing")
	if err != nil || !strings.Contains(out, "enviada por email") {
		t.Fatalf("difundir: %q %v", out, err)
	}
	if _, ok := env.outbox.Last("luis.perez@example.com"); !ok {
		t.Fatal("broadcast not delivered")
	}
	out, err = env.run(t, nil, "seguridad")
	if err != nil || !strings.Contains(out, "Revisen los enlaces") {
		t.Fatalf("seguridad: %q %v", out, err)
	}
}

func TestCLIReport(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, nil, "diagnostico")
	if err != nil || !strings.Contains(out, "Sesión") || !strings.Contains(out, "file") {
		t.Fatalf("diagnostico: %q %v", out, err)
	}
}
