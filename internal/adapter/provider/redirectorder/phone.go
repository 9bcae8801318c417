package redirectorder

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number: expected 237 followed by 9 digits")

// NormalizePhone returns the international form 237XXXXXXXXX.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if (strings.HasPrefix(digits, "6") || strings.HasPrefix(digits, "2")) && !strings.HasPrefix(digits, "237") {
		digits = "237" + digits
	}
	if len(digits) != 12 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
