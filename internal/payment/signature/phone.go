package signature

import "strings"

const (
	CountryCode      = "27"
	subscriberDigits = 9
	PlaceholderPhone = CountryCode + "000000000"
)

// NormalizePhone mengubah nomor kontak ke format 27XXXXXXXXX yang diminta gateway.
func NormalizePhone(phone string) string {
	if strings.TrimSpace(phone) == "" {
		return PlaceholderPhone
	}

	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, CountryCode) && len(digits) == len(CountryCode)+subscriberDigits:
		return digits
	case strings.HasPrefix(digits, "0"):
		return CountryCode + digits[1:]
	}

	if len(digits) > subscriberDigits {
		digits = digits[len(digits)-subscriberDigits:]
	}
	return CountryCode + strings.Repeat("0", subscriberDigits-len(digits)) + digits
}
