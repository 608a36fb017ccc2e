package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// PinDigits is the length of the emailed verification PIN.
const PinDigits = 6

// NewFlowID returns the id that ties the audit events of one flow together.
func NewFlowID() string {
	return uuid.NewString()
}

// NewPIN returns a uniformly random numeric code of the given length.
func NewPIN(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid pin digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	pin := b.String()
	if len(pin) != digits {
		return "", fmt.Errorf("invalid pin generation length")
	}
	return pin, nil
}

// HashPIN is how a PIN is kept at rest.
func HashPIN(pin string) [32]byte {
	return sha256.Sum256([]byte(pin))
}

// PINMatches compares in constant time.
func PINMatches(pin string, stored [32]byte) bool {
	h := HashPIN(pin)
	return subtle.ConstantTimeCompare(h[:], stored[:]) == 1
}
