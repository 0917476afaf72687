package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sevahq/seva/services/booking-service/internal/model"
	"github.com/sevahq/seva/services/booking-service/internal/storage"
)

func testHandler(now time.Time) *BookingHandler {
	h := NewBookingHandler(nil, nil, slog.Default(), nil, nil, nil, time.UTC)
	h.now = func() time.Time { return now }
	return h
}

func TestSlotsEndpointFutureDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	h := testHandler(now)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?date=2026-03-12", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 13 {
		t.Fatalf("got %d slots, want 13", len(resp.Slots))
	}
	if resp.Slots[0].Value != "08:00" || resp.Slots[12].Value != "20:00" {
		t.Fatalf("window = %s..%s, want 08:00..20:00", resp.Slots[0].Value, resp.Slots[12].Value)
	}
}

func TestSlotsEndpointSameDayCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 17, 45, 0, 0, time.UTC)
	h := testHandler(now)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?date=2026-03-10", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(resp.Slots))
	}
	if resp.Slots[0].Value != "18:00" {
		t.Fatalf("first slot = %s, want 18:00", resp.Slots[0].Value)
	}
}

func TestSlotsEndpointPastDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h := testHandler(now)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?date=2026-03-08", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("past date returned %d slots, want 0", len(resp.Slots))
	}
}

func TestSlotsEndpointMissingDate(t *testing.T) {
	h := testHandler(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("got %d slots, want 0", len(resp.Slots))
	}
}

func TestSlotsEndpointBadDate(t *testing.T) {
	h := testHandler(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?date=12-03-2026", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

type fakeTx struct{ pgx.Tx }

func (fakeTx) Rollback(context.Context) error { return nil }
func (fakeTx) Commit(context.Context) error   { return nil }

// replayStore answers every idempotency lookup with a stored record.
type replayStore struct {
	rec storage.IdempotencyRecord
}

func (s *replayStore) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (s *replayStore) LockIdempotencyKey(context.Context, pgx.Tx, string, string) (storage.IdempotencyRecord, bool, error) {
	return s.rec, true, nil
}

func (s *replayStore) FinalizeIdempotency(context.Context, pgx.Tx, string, string, string, int, []byte) error {
	return nil
}

func (s *replayStore) Create(context.Context, pgx.Tx, *model.Booking) (string, error) {
	return "", errors.New("create must not run on a replayed key")
}

func (s *replayStore) GetForUpdate(context.Context, pgx.Tx, string, string) (model.Booking, error) {
	return model.Booking{}, errors.New("not implemented")
}

func (s *replayStore) Cancel(context.Context, pgx.Tx, string, string, string) (time.Time, error) {
	return time.Time{}, errors.New("not implemented")
}

func (s *replayStore) ListByUser(context.Context, string, int) ([]model.Booking, error) {
	return nil, errors.New("not implemented")
}

func TestCreateReplayReturnsStoredStatus(t *testing.T) {
	// A zero-amount booking is confirmed at create time; a retry with the
	// same Idempotency-Key must replay that status, not pending_payment.
	stored := storage.IdempotencyRecord{
		BookingID:       "bk_1",
		StatusCode:      http.StatusCreated,
		ResponsePayload: []byte(`{"booking_id":"bk_1","status":"confirmed"}`),
	}
	h := NewBookingHandler(&replayStore{rec: stored}, nil, slog.Default(), nil, nil, nil, time.UTC)
	h.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	body := `{"provider_id":"p1","service_type":"cleaning","date":"2026-03-12","slot":"10:00",` +
		`"address":"12 MG Road","customer_name":"Asha","customer_email":"asha@example.com",` +
		`"customer_phone":"9876543210","amount_paise":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var resp createBookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != model.StatusConfirmed {
		t.Fatalf("replayed status = %q, want %q", resp.Status, model.StatusConfirmed)
	}
	if resp.BookingID != "bk_1" {
		t.Fatalf("replayed booking_id = %q, want bk_1", resp.BookingID)
	}
}

func TestDateBefore(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a    time.Time
		want bool
	}{
		{"previous day", base.AddDate(0, 0, -1), true},
		{"same day earlier clock", time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC), false},
		{"same day", base, false},
		{"next day", base.AddDate(0, 0, 1), false},
		{"previous month", base.AddDate(0, -1, 0), true},
		{"previous year", base.AddDate(-1, 0, 0), true},
	}
	for _, tc := range cases {
		if got := dateBefore(tc.a, base); got != tc.want {
			t.Errorf("%s: dateBefore = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSlotStart(t *testing.T) {
	date := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	got := slotStart(date, "14:00")
	want := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("slotStart = %v, want %v", got, want)
	}
	if got := slotStart(date, "garbage"); !got.Equal(date) {
		t.Fatalf("slotStart with bad value = %v, want date unchanged", got)
	}
}

func TestSlotLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"08:00", "8:00 AM"},
		{"12:00", "12:00 PM"},
		{"13:00", "1:00 PM"},
		{"20:00", "8:00 PM"},
		{"09:30", "9:30 AM"},
		{"bogus", "bogus"},
	}
	for _, tc := range cases {
		if got := slotLabel(tc.in); got != tc.want {
			t.Errorf("slotLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
