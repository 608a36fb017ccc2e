package jwt

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func hsConfig() Config {
	return Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    bytes.Repeat([]byte{7}, 32),
		Issuer:        "cuenta",
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	m, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	payload := []byte{2, '{', '"', 'a', '"', ':', '1', '}'}
	tok, err := m.Sign(payload)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	got, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload changed: %q", got)
	}
}

func TestVerifyRejectsOtherKey(t *testing.T) {
	m, _ := NewManager(hsConfig())
	other := hsConfig()
	other.PrivateKey = bytes.Repeat([]byte{8}, 32)
	m2, _ := NewManager(other)

	tok, err := m.Sign([]byte("x"))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := m2.Verify(tok); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestVerifyExpired(t *testing.T) {
	m, _ := NewManager(hsConfig())
	base := time.Now()
	m.now = func() time.Time { return base }
	tok, err := m.Sign([]byte("x"))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := m.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestEd25519DerivesPublicKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, KeyID: "k1"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	tok, err := m.Sign([]byte("payload"))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	got, err := m.Verify(tok)
	if err != nil || string(got) != "payload" {
		t.Fatalf("Verify=%q,%v", got, err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{SigningMethod: "rs256"},
		{SigningMethod: MethodEd25519},
		{SigningMethod: MethodHS256, PrivateKey: bytes.Repeat([]byte{1}, 32), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
