package password

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Checker verifies a password against whatever the account table holds: an
// Argon2id PHC string, a bcrypt hash written by older releases, or, for
// accounts never migrated, the plaintext value itself.
type Checker struct {
	argon *Argon2
}

// NewChecker returns a Checker that hashes new passwords with argon.
func NewChecker(argon *Argon2) *Checker {
	return &Checker{argon: argon}
}

// Hash hashes a new password with Argon2id.
func (c *Checker) Hash(password string) (string, error) {
	return c.argon.Hash(password)
}

// Verify reports whether password matches stored. Empty stored values never
// match.
func (c *Checker) Verify(password, stored string) (bool, error) {
	switch {
	case stored == "":
		return false, nil
	case strings.HasPrefix(stored, "$"+algorithmID+"$"):
		return c.argon.Verify(password, stored)
	case isBcrypt(stored):
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return err == nil, err
	default:
		return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1, nil
	}
}

// NeedsUpgrade reports whether stored should be re-hashed with Argon2id on the
// next successful verification.
func (c *Checker) NeedsUpgrade(stored string) bool {
	if !strings.HasPrefix(stored, "$"+algorithmID+"$") {
		return true
	}
	upgrade, err := c.argon.NeedsUpgrade(stored)
	return err != nil || upgrade
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
