package validate

import "testing"

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
		strength PasswordStrength
		met      int
	}{
		{"all four", "sunrise9!", true, StrengthStrong, 4},
		{"empty", "", false, StrengthWeak, 0},
		{"only length", "abcdefgh", false, StrengthMedium, 2}, // length + letter
		{"digits only short", "1234", false, StrengthWeak, 1},
		{"letters and digits", "abc123", false, StrengthMedium, 2},
		{"long with digit no special", "password1", false, StrengthMedium, 3},
		{"special but short", "ab1!", false, StrengthMedium, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Password(tc.password)
			if got.Valid != tc.valid {
				t.Fatalf("Valid = %v, want %v (%+v)", got.Valid, tc.valid, got.Requirements)
			}
			met := 0
			for _, req := range got.Requirements {
				if req.Met {
					met++
				}
			}
			if met != tc.met {
				t.Fatalf("met = %d, want %d (%+v)", met, tc.met, got.Requirements)
			}
			if got.Strength != tc.strength {
				t.Fatalf("strength = %s, want %s", got.Strength, tc.strength)
			}
		})
	}
}

func TestPasswordStrengthBands(t *testing.T) {
	if got := Password("a"); got.Strength != StrengthWeak {
		t.Fatalf("one requirement met should be weak, got %s", got.Strength)
	}
	if got := Password("abc123"); got.Strength != StrengthMedium {
		t.Fatalf("two met should be medium, got %s", got.Strength)
	}
	if got := Password("longpassword7"); got.Strength != StrengthMedium {
		t.Fatalf("three met should be medium, got %s", got.Strength)
	}
	if got := Password("longpassword7!"); got.Strength != StrengthStrong || !got.Valid {
		t.Fatalf("four met should be strong and valid, got %s valid=%v", got.Strength, got.Valid)
	}
}
