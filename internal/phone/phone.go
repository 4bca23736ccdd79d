// Package phone canonicalizes Israeli phone numbers to E.164 (+972XXXXXXXXX).
package phone

import (
	"errors"
	"strings"
)

var ErrInvalid = errors.New("phone: invalid israeli number")

func sanitizeDigits(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the canonical +972 form of raw.
//
//	0501234567, 050-123-4567, 501234567, 972501234567, +972-50-123-4567 -> +972501234567
func Normalize(raw string) (string, error) {
	digits := sanitizeDigits(raw)
	switch {
	case digits == "":
		return "", ErrInvalid
	case strings.HasPrefix(digits, "972"):
		if len(digits) != 12 {
			return "", ErrInvalid
		}
		return "+" + digits, nil
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "+972" + digits[1:], nil
	case strings.HasPrefix(digits, "5") && len(digits) == 9:
		return "+972" + digits, nil
	}
	return "", ErrInvalid
}

// Local formats as 050-123-4567, or returns raw when it cannot be normalized.
func Local(raw string) string {
	p, err := Normalize(raw)
	if err != nil {
		return raw
	}
	d := p[4:]
	return "0" + d[:2] + "-" + d[2:5] + "-" + d[5:]
}

// Digits returns the canonical number without the leading plus, as SMS gateways expect.
func Digits(canonical string) string {
	return strings.TrimPrefix(canonical, "+")
}

// Mask hides the middle of a number for logs.
func Mask(p string) string {
	if len(p) < 7 {
		return "***"
	}
	return p[:4] + strings.Repeat("*", len(p)-7) + p[len(p)-3:]
}
