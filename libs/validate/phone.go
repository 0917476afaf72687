package validate

import (
	"fmt"
	"strings"
)

// PhoneResult reports the outcome of an Indian mobile number check.
// Formatted holds the "XXXXX XXXXX" rendering when the digits could be
// normalized, otherwise the raw digits.
type PhoneResult struct {
	Valid     bool   `json:"is_valid"`
	Formatted string `json:"formatted"`
	Message   string `json:"message,omitempty"`
}

// Obviously fake numbers people type to skip the field.
var fakeNumbers = map[string]struct{}{
	"0000000000": {},
	"1111111111": {},
	"1234567890": {},
	"0987654321": {},
}

// IndianPhone validates a mobile number. Non-digits are stripped, then a
// leading "91" country code, a mistyped "911" prefix, or a trunk "0" is
// removed. The remaining ten digits must start with 6, 7, 8 or 9 and not be
// one of the well-known fake patterns.
func IndianPhone(phone string) PhoneResult {
	if strings.TrimSpace(phone) == "" {
		return PhoneResult{Message: "Phone number is required"}
	}

	digits := digitsOnly(phone)

	var number string
	switch {
	case len(digits) == 10:
		number = digits
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		number = digits[2:]
	case len(digits) == 13 && strings.HasPrefix(digits, "911"):
		number = digits[3:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		number = digits[1:]
	default:
		return PhoneResult{
			Formatted: digits,
			Message:   fmt.Sprintf("Invalid phone number. Indian mobile numbers should be 10 digits. You entered %d digits.", len(digits)),
		}
	}

	if number[0] < '6' || number[0] > '9' {
		return PhoneResult{
			Formatted: FormatIndianPhone(number),
			Message:   "Indian mobile numbers must start with 6, 7, 8, or 9",
		}
	}
	if _, fake := fakeNumbers[number]; fake {
		return PhoneResult{
			Formatted: FormatIndianPhone(number),
			Message:   "Please enter a valid phone number",
		}
	}

	return PhoneResult{Valid: true, Formatted: FormatIndianPhone(number)}
}

// FormatIndianPhone renders ten digits as "XXXXX XXXXX"; anything else is
// returned unchanged.
func FormatIndianPhone(digits string) string {
	if len(digits) == 10 {
		return digits[:5] + " " + digits[5:]
	}
	return digits
}

// CarrierInfo gives a coarse operator guess from the leading digits.
// Indian number series overlap heavily after portability, so this is
// informational only.
func CarrierInfo(phone string) string {
	digits := digitsOnly(phone)
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) != 10 {
		return "Unknown"
	}
	switch digits[0] {
	case '6':
		return "Reliance Jio"
	case '7':
		if digits[1] <= '5' {
			return "Airtel"
		}
		return "Vodafone"
	case '8':
		return "Airtel/Vodafone"
	case '9':
		return "Various Operators"
	}
	return "Unknown"
}

// WithCountryCode prefixes a valid number with +91; invalid input is
// returned as given.
func WithCountryCode(phone string) string {
	res := IndianPhone(phone)
	if !res.Valid {
		return phone
	}
	return "+91 " + res.Formatted
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
