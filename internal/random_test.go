package internal

import "testing"

func TestNewPINLengthAndDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		pin, err := NewPIN(PinDigits)
		if err != nil {
			t.Fatalf("NewPIN: %v", err)
		}
		if len(pin) != PinDigits {
			t.Fatalf("expected %d digits, got %q", PinDigits, pin)
		}
		for _, r := range pin {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in %q", pin)
			}
		}
	}
}

func TestNewPINRejectsBadLength(t *testing.T) {
	for _, n := range []int{0, 3, 11} {
		if _, err := NewPIN(n); err == nil {
			t.Fatalf("expected error for %d digits", n)
		}
	}
}

func TestPINMatches(t *testing.T) {
	stored := HashPIN("123456")
	if !PINMatches("123456", stored) {
		t.Fatal("expected match")
	}
	if PINMatches("123457", stored) {
		t.Fatal("unexpected match")
	}
}

func TestNewFlowIDUnique(t *testing.T) {
	if NewFlowID() == NewFlowID() {
		t.Fatal("expected distinct ids")
	}
}
