package validate

import (
	"strings"
	"testing"
)

func TestEmailFormat(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		valid  bool
		reason string
	}{
		{"plain address", "asha@example.com", true, ""},
		{"subdomain", "asha@mail.example.co.in", true, ""},
		{"plus tag", "asha+bookings@gmail.com", true, ""},
		{"uppercase normalized", "ASHA@EXAMPLE.COM", true, ""},
		{"empty", "", false, "Email is required"},
		{"whitespace only", "   ", false, "Email is required"},
		{"missing at", "asha.example.com", false, "Invalid email format"},
		{"missing domain", "asha@", false, "Invalid email format"},
		{"consecutive dots", "asha..rao@example.com", false, "Email cannot contain consecutive dots"},
		{"dot before at", "asha.@example.com", false, "Invalid dot placement around @"},
		{"dot after at", "asha@.example.com", false, "Invalid email format"},
		{"local part too long", strings.Repeat("a", 65) + "@example.com", false, "Email local part too long (max 64 characters)"},
		{"local part at limit", strings.Repeat("a", 64) + "@example.com", true, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Email(tc.email)
			if got.Valid != tc.valid {
				t.Fatalf("Email(%q).Valid = %v, want %v (reason %q)", tc.email, got.Valid, tc.valid, got.Reason)
			}
			if tc.reason != "" && got.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", got.Reason, tc.reason)
			}
		})
	}
}

func TestSuggestEmailDomainKnownTypo(t *testing.T) {
	got := SuggestEmailDomain("asha@gmai.com")
	if got.Valid {
		t.Fatal("gmai.com should be flagged")
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0] != "asha@gmail.com" {
		t.Fatalf("suggestions = %v, want [asha@gmail.com]", got.Suggestions)
	}
}

func TestSuggestEmailDomainEditDistance(t *testing.T) {
	got := SuggestEmailDomain("asha@gamil.com")
	if got.Valid {
		t.Fatal("gamil.com is within distance 2 of gmail.com, should be flagged")
	}
	if len(got.Suggestions) == 0 || len(got.Suggestions) > 3 {
		t.Fatalf("suggestions = %v, want 1..3 entries", got.Suggestions)
	}
	found := false
	for _, s := range got.Suggestions {
		if s == "asha@gmail.com" {
			found = true
		}
	}
	if !found {
		t.Fatalf("suggestions = %v, want asha@gmail.com among them", got.Suggestions)
	}
}

func TestSuggestEmailDomainCleanAddress(t *testing.T) {
	for _, email := range []string{"asha@gmail.com", "asha@company-internal.example"} {
		if got := SuggestEmailDomain(email); !got.Valid {
			t.Fatalf("SuggestEmailDomain(%q) flagged a clean address: %+v", email, got)
		}
	}
}

func TestDisposableEmail(t *testing.T) {
	if got := DisposableEmail("x@mailinator.com"); got.Valid {
		t.Fatal("mailinator.com should be blocked")
	}
	if got := DisposableEmail("x@gmail.com"); !got.Valid {
		t.Fatalf("gmail.com wrongly blocked: %+v", got)
	}
}

func TestRoleEmail(t *testing.T) {
	for _, email := range []string{"admin@example.com", "no-reply@example.com", "INFO@example.com"} {
		if got := RoleEmail(email); got.Valid {
			t.Fatalf("RoleEmail(%q) should be blocked", email)
		}
	}
	if got := RoleEmail("asha@example.com"); !got.Valid {
		t.Fatalf("personal address wrongly blocked: %+v", got)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"gmail.com", "gmail.com", 0},
		{"gamil.com", "gmail.com", 2},
		{"yaho.com", "yahoo.com", 1},
		{"", "abc", 3},
		{"abc", "", 3},
	}
	for _, tc := range tests {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
