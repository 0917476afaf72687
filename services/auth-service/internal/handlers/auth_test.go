package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sevahq/seva/services/auth-service/internal/storage"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if err := verifyPassword(hash, "Str0ng!pass"); err != nil {
		t.Fatalf("verifyPassword: %v", err)
	}
	if err := verifyPassword(hash, "wrong"); err == nil {
		t.Fatal("verifyPassword accepted a wrong password")
	}
}

func TestIssueJWTRoundTrip(t *testing.T) {
	signer := NewHS256Signer("test-secret")
	user := storage.User{ID: "user-1", Name: "Asha", Role: "customer"}

	token, err := issueJWT(user, signer)
	if err != nil {
		t.Fatalf("issueJWT: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Sub != "user-1" || claims.Name != "Asha" || claims.Role != "customer" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestNewRefreshTokenIsUnique(t *testing.T) {
	a, err := newRefreshToken()
	if err != nil {
		t.Fatalf("newRefreshToken: %v", err)
	}
	b, err := newRefreshToken()
	if err != nil {
		t.Fatalf("newRefreshToken: %v", err)
	}
	if a == b {
		t.Fatal("two refresh tokens collided")
	}
	if len(a) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(a))
	}
}

func registerBody(t *testing.T, name, email, phone, password string) *strings.Reader {
	t.Helper()
	raw, err := json.Marshal(registerRequest{Name: name, Email: email, Phone: phone, Password: password})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return strings.NewReader(string(raw))
}

// Register rejects bad input before it ever touches the database, so these
// paths are testable with a nil pool.
func TestRegisterRejectsInvalidInput(t *testing.T) {
	h := NewAuthHandler(NewHS256Signer("s"), nil, nil, nil, nil, nil, 0, false)

	cases := []struct {
		name string
		body *strings.Reader
		want int
	}{
		{"missing fields", registerBody(t, "", "a@gmail.com", "9876543210", "Str0ng!pass"), http.StatusBadRequest},
		{"bad email format", registerBody(t, "Asha", "not-an-email", "9876543210", "Str0ng!pass"), http.StatusUnprocessableEntity},
		{"typo domain", registerBody(t, "Asha", "asha@gmai.com", "9876543210", "Str0ng!pass"), http.StatusUnprocessableEntity},
		{"disposable domain", registerBody(t, "Asha", "asha@mailinator.com", "9876543210", "Str0ng!pass"), http.StatusUnprocessableEntity},
		{"role address", registerBody(t, "Asha", "admin@gmail.com", "9876543210", "Str0ng!pass"), http.StatusUnprocessableEntity},
		{"bad phone", registerBody(t, "Asha", "asha@gmail.com", "1234567890", "Str0ng!pass"), http.StatusUnprocessableEntity},
		{"weak password", registerBody(t, "Asha", "asha@gmail.com", "9876543210", "abc"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", tc.body)
		rec := httptest.NewRecorder()
		h.Register(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestRegisterTypoRejectionCarriesSuggestion(t *testing.T) {
	h := NewAuthHandler(NewHS256Signer("s"), nil, nil, nil, nil, nil, 0, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		registerBody(t, "Asha", "asha@gmai.com", "9876543210", "Str0ng!pass"))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	var resp rejectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0] != "asha@gmail.com" {
		t.Fatalf("suggestions = %v, want asha@gmail.com first", resp.Suggestions)
	}
}
