package validate

import "strings"

type PasswordStrength string

const (
	StrengthWeak   PasswordStrength = "weak"
	StrengthMedium PasswordStrength = "medium"
	StrengthStrong PasswordStrength = "strong"
)

// PasswordRequirement is one of the four independent checks, with a label
// suitable for showing next to a checkbox.
type PasswordRequirement struct {
	Label string `json:"label"`
	Met   bool   `json:"met"`
}

// PasswordResult reports which requirements a candidate password meets.
// Valid requires all of them; Strength is weak at 0-1 met, medium at 2-3,
// strong at 4.
type PasswordResult struct {
	Valid        bool                  `json:"is_valid"`
	Requirements []PasswordRequirement `json:"requirements"`
	Strength     PasswordStrength      `json:"strength"`
}

const specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Password scores a candidate password against the signup policy.
func Password(password string) PasswordResult {
	requirements := []PasswordRequirement{
		{Label: "At least 8 characters", Met: len(password) >= 8},
		{Label: "At least 1 letter", Met: strings.ContainsFunc(password, isLetter)},
		{Label: "At least 1 number", Met: strings.ContainsFunc(password, isDigit)},
		{Label: "At least 1 special character", Met: strings.ContainsAny(password, specialChars)},
	}

	met := 0
	for _, req := range requirements {
		if req.Met {
			met++
		}
	}

	strength := StrengthWeak
	switch {
	case met >= 4:
		strength = StrengthStrong
	case met >= 2:
		strength = StrengthMedium
	}

	return PasswordResult{
		Valid:        met == len(requirements),
		Requirements: requirements,
		Strength:     strength,
	}
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
