package mobilemoney

import (
	"errors"
	"strings"
)

// Aggregator service ids per carrier.
const (
	ServiceOrangeMoney = "30056"
	ServiceMTNMoMo     = "20056"
)

var (
	ErrPhoneRequired = errors.New("phone number is required for mobile money payments")
	ErrInvalidPhone  = errors.New("invalid Cameroon phone number: expected 9 digits starting with 6")
)

// NormalizePhone returns the 9-digit national form (6XXXXXXXX) the
// aggregator expects, dropping formatting and a leading 237.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrPhoneRequired
	}
	digits = strings.TrimPrefix(digits, "237")
	if len(digits) != 9 || digits[0] != '6' {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// ServiceForPhone routes a normalized number to its carrier's service id.
// Orange numbers start with 69; every other 6x prefix goes to MTN.
func ServiceForPhone(phone string) string {
	if strings.HasPrefix(phone, "69") {
		return ServiceOrangeMoney
	}
	return ServiceMTNMoMo
}
