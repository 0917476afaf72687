package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func adminPost(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(string(raw)))
	req.Header.Set("X-Role", "admin")
	return req
}

// Rejections happen before any repository call, so a nil repo is fine here.
func TestCreateProviderRejectsInvalidInput(t *testing.T) {
	h := NewCatalogHandler(nil, nil)

	cases := []struct {
		name string
		req  createProviderRequest
		want int
	}{
		{"missing name", createProviderRequest{Category: "cleaning", Specialty: "Deep clean", Phone: "9876543210"}, http.StatusBadRequest},
		{"negative price", createProviderRequest{Category: "cleaning", Name: "A", Specialty: "S", PricePaise: -1, Phone: "9876543210"}, http.StatusBadRequest},
		{"rating out of range", createProviderRequest{Category: "cleaning", Name: "A", Specialty: "S", Rating: 5.5, Phone: "9876543210"}, http.StatusBadRequest},
		{"bad phone", createProviderRequest{Category: "cleaning", Name: "A", Specialty: "S", Phone: "12345"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.CreateProvider(rec, adminPost(t, "/api/v1/providers", tc.req))
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestCreateProviderRequiresAdmin(t *testing.T) {
	h := NewCatalogHandler(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/providers", strings.NewReader("{}"))
	req.Header.Set("X-Role", "customer")
	rec := httptest.NewRecorder()
	h.CreateProvider(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestIsAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isAdmin(req) {
		t.Fatal("request without X-Role counted as admin")
	}
	req.Header.Set("X-Role", " admin ")
	if !isAdmin(req) {
		t.Fatal("trimmed admin role not recognized")
	}
}

func TestDayRangeDefaultsToComingYear(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/days-off?provider_id=p1", nil)
	from, to := dayRange(req)
	if !to.After(from) {
		t.Fatalf("to %v not after from %v", to, from)
	}
	if to.Sub(from).Hours() < 300*24 {
		t.Fatalf("default range too short: %v", to.Sub(from))
	}
}

func TestDayRangeExplicitBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?from=2026-04-01&to=2026-04-30", nil)
	from, to := dayRange(req)
	if from.Format("2006-01-02") != "2026-04-01" || to.Format("2006-01-02") != "2026-04-30" {
		t.Fatalf("range = %v..%v", from, to)
	}
}
