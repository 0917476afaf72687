package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithQueryParam(t *testing.T) {
	cases := []struct {
		rawURL string
		want   string
	}{
		{"https://app.example.com/return", "https://app.example.com/return?state=ab%2Fcd"},
		{"https://app.example.com/return?x=1", "https://app.example.com/return?x=1&state=ab%2Fcd"},
	}
	for _, tc := range cases {
		if got := withQueryParam(tc.rawURL, "state", "ab/cd"); got != tc.want {
			t.Errorf("withQueryParam(%q) = %q, want %q", tc.rawURL, got, tc.want)
		}
	}
}

func TestNewReturnTokenIsUnique(t *testing.T) {
	a := newReturnToken()
	b := newReturnToken()
	if a == b {
		t.Fatal("expected distinct tokens")
	}
	if len(a) != 22 {
		t.Fatalf("unexpected token length %d", len(a))
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token %q is not URL-safe", a)
	}
}

func TestCheckoutRejectsWithoutStripeKey(t *testing.T) {
	h := New(nil, nil, slog.Default(), Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/checkout", strings.NewReader(`{"booking_id":"b1","amount_paise":50000}`))
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestCheckoutRejectsInvalidInput(t *testing.T) {
	h := New(nil, nil, slog.Default(), Config{StripeSecretKey: "sk_test_123"})

	cases := []struct {
		name   string
		userID string
		body   string
		want   int
	}{
		{"missing user", "", `{"booking_id":"b1","amount_paise":100}`, http.StatusUnauthorized},
		{"missing booking", "u1", `{"amount_paise":100}`, http.StatusBadRequest},
		{"zero amount", "u1", `{"booking_id":"b1","amount_paise":0}`, http.StatusBadRequest},
		{"negative amount", "u1", `{"booking_id":"b1","amount_paise":-5}`, http.StatusBadRequest},
		{"bad json", "u1", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/checkout", strings.NewReader(tc.body))
			if tc.userID != "" {
				req.Header.Set("X-User-Id", tc.userID)
			}
			rec := httptest.NewRecorder()
			h.Checkout(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAckReturnValidatesResult(t *testing.T) {
	h := New(nil, nil, slog.Default(), Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/session/ack", strings.NewReader(`{"session_id":"cs_1","state":"tok","result":"maybe"}`))
	rec := httptest.NewRecorder()
	h.AckReturn(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStripeWebhookRequiresSignature(t *testing.T) {
	h := New(nil, nil, slog.Default(), Config{StripeWebhookSecret: "whsec_test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
