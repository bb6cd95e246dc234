// Package phone formats and validates North American mobile numbers for the
// back-in-stock form.
package phone

import (
	"regexp"
	"strings"
)

const (
	// CountryCode is prefixed to every canonical number.
	CountryCode = "+1"

	nationalDigits = 10
	groupAfter     = 6
)

var displayPattern = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)

// Digits strips everything except ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format turns raw input into the display form "(555) 123-4567".
// Fewer than 6 digits are returned bare; anything past 10 digits is dropped.
// Format is idempotent.
func Format(raw string) string {
	d := Digits(raw)
	if len(d) > nationalDigits {
		d = d[:nationalDigits]
	}
	if len(d) < groupAfter {
		return d
	}

	var b strings.Builder
	b.WriteString("(")
	b.WriteString(d[:3])
	b.WriteString(") ")
	b.WriteString(d[3:6])
	if len(d) > 6 {
		b.WriteString("-")
		b.WriteString(d[6:])
	}
	return b.String()
}

// IsValid reports whether s is exactly in display form.
func IsValid(s string) bool {
	return displayPattern.MatchString(s)
}

// ToCanonical converts a valid display string to "+15551234567".
// The result is meaningless for input that fails IsValid.
func ToCanonical(display string) string {
	return CountryCode + Digits(display)
}
