// Package validate holds the pure input checks used before any profile mutation
// reaches the backend.
package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the minimum number of runes a new password must have.
	MinPasswordLength = 8
	// MinPhoneDigits is the minimum number of digits a phone number must have
	// once separators are stripped.
	MinPhoneDigits = 8
	// RecoveryPhoneDigits is the number of trailing digits used to match a
	// phone number during identity recovery.
	RecoveryPhoneDigits = 8
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email reports whether v has the local@domain.tld shape. The empty string is
// invalid.
func Email(v string) bool {
	if v == "" {
		return false
	}
	return emailPattern.MatchString(v)
}

// Strength is the per-rule result of a password strength check, so callers can
// render a live checklist.
type Strength struct {
	Length bool
	Upper  bool
	Digit  bool
	Symbol bool
}

// OK reports whether every rule holds.
func (s Strength) OK() bool {
	return s.Length && s.Upper && s.Digit && s.Symbol
}

// PasswordStrength evaluates v against the default minimum length.
func PasswordStrength(v string) Strength {
	return PasswordStrengthMin(v, MinPasswordLength)
}

// PasswordStrengthMin evaluates v with a custom minimum length. A symbol is any
// rune that is neither a letter nor a digit, in any script.
func PasswordStrengthMin(v string, minLength int) Strength {
	if minLength <= 0 {
		minLength = MinPasswordLength
	}
	s := Strength{Length: utf8.RuneCountInString(v) >= minLength}
	for _, r := range v {
		switch {
		case unicode.IsUpper(r):
			s.Upper = true
		case unicode.IsDigit(r):
			s.Digit = true
		case !unicode.IsLetter(r):
			s.Symbol = true
		}
	}
	return s
}

// PasswordsMatch reports whether the confirmation is non-empty and equal to the
// new password.
func PasswordsMatch(a, b string) bool {
	return b != "" && a == b
}

// DigitsOnly strips every non-digit rune from v.
func DigitsOnly(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneDigits reports whether v has at least MinPhoneDigits digits after
// stripping separators.
func PhoneDigits(v string) bool {
	return len(DigitsOnly(v)) >= MinPhoneDigits
}

// Last8Digits returns the trailing RecoveryPhoneDigits digits of v, or every
// digit when there are fewer.
func Last8Digits(v string) string {
	d := DigitsOnly(v)
	if len(d) <= RecoveryPhoneDigits {
		return d
	}
	return d[len(d)-RecoveryPhoneDigits:]
}

// MaskEmail hides the local part of an address except its first and last rune,
// e.g. "juan.perez@dominio.com" becomes "j********z@dominio.com". Values that do
// not look like an address are returned unchanged.
func MaskEmail(v string) string {
	at := strings.LastIndex(v, "@")
	if at <= 0 {
		return v
	}
	local := []rune(v[:at])
	domain := v[at:]
	switch len(local) {
	case 1:
		return "*" + domain
	case 2:
		return string(local[0]) + "*" + domain
	}
	return string(local[0]) + strings.Repeat("*", len(local)-2) + string(local[len(local)-1]) + domain
}

// Username reports whether v is long enough to be worth an availability
// lookup. Shorter values are never sent to the backend.
func Username(v string, minLength int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(v)) >= minLength
}
