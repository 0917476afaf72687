package validate

import "testing"

func TestIndianPhone(t *testing.T) {
	tests := []struct {
		name      string
		phone     string
		valid     bool
		formatted string
	}{
		{"ten digits", "9876543210", true, "98765 43210"},
		{"with country code", "919876543210", true, "98765 43210"},
		{"plus and spaces", "+91 98765 43210", true, "98765 43210"},
		{"mistyped 911 prefix", "9119876543210", true, "98765 43210"},
		{"trunk zero", "09876543210", true, "98765 43210"},
		{"jio series", "6123456789", true, "61234 56789"},
		{"starts with 5", "5876543210", false, ""},
		{"too short", "98765", false, ""},
		{"too long", "98765432101234", false, ""},
		{"repeated digits", "1111111111", false, ""},
		{"sequential", "1234567890", false, ""},
		{"reverse sequential", "0987654321", false, ""},
		{"empty", "", false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := IndianPhone(tc.phone)
			if got.Valid != tc.valid {
				t.Fatalf("IndianPhone(%q).Valid = %v, want %v (message %q)", tc.phone, got.Valid, tc.valid, got.Message)
			}
			if tc.valid && got.Formatted != tc.formatted {
				t.Fatalf("formatted = %q, want %q", got.Formatted, tc.formatted)
			}
			if !tc.valid && got.Message == "" {
				t.Fatal("invalid number must carry a message")
			}
		})
	}
}

func TestCarrierInfo(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"6123456789", "Reliance Jio"},
		{"7012345678", "Airtel"},
		{"7912345678", "Vodafone"},
		{"8123456789", "Airtel/Vodafone"},
		{"9876543210", "Various Operators"},
		{"919876543210", "Various Operators"},
		{"12345", "Unknown"},
	}
	for _, tc := range tests {
		if got := CarrierInfo(tc.phone); got != tc.want {
			t.Errorf("CarrierInfo(%q) = %q, want %q", tc.phone, got, tc.want)
		}
	}
}

func TestWithCountryCode(t *testing.T) {
	if got := WithCountryCode("9876543210"); got != "+91 98765 43210" {
		t.Fatalf("got %q", got)
	}
	if got := WithCountryCode("notaphone"); got != "notaphone" {
		t.Fatalf("invalid input should pass through, got %q", got)
	}
}
