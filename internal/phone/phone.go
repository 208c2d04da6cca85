// Package phone canonicalizes raw phone numbers into a dialable,
// country-code-prefixed digit string. Best effort by design: scheduling must
// never abort on one badly formatted number, so Canonical is total.
package phone

import "strings"

// DefaultCountryCode is the platform's default DDI (Brazil).
const DefaultCountryCode = "55"

// Canonical returns the canonical dialable form of a raw phone string:
// digits only, trunk zeros stripped, country code prefixed when absent.
// Malformed input yields the best-effort canonical form, never an error.
func Canonical(raw string) string {
	digits := onlyDigits(raw)
	if digits == "" {
		return ""
	}

	// Trunk prefix: "0 11 98765-4321" dials as "11 98765-4321".
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return ""
	}

	if hasCountryCode(digits) {
		return digits
	}
	return DefaultCountryCode + digits
}

// hasCountryCode reports whether digits already carry the default DDI.
// A national number is 10 or 11 digits (area code + 8/9 digit subscriber),
// so a 55-prefixed number spans 12-13 digits. Shorter strings starting with
// 55 are area-code-55 national numbers, not internationally prefixed ones.
func hasCountryCode(digits string) bool {
	if !strings.HasPrefix(digits, DefaultCountryCode) {
		return false
	}
	return len(digits) >= 12 && len(digits) <= 13
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
