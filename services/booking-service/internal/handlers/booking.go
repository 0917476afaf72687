package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sevahq/seva/libs/validate"
	"github.com/sevahq/seva/services/booking-service/internal/availability"
	"github.com/sevahq/seva/services/booking-service/internal/catalog"
	"github.com/sevahq/seva/services/booking-service/internal/model"
	"github.com/sevahq/seva/services/booking-service/internal/outbox"
	"github.com/sevahq/seva/services/booking-service/internal/policy"
	"github.com/sevahq/seva/services/booking-service/internal/storage"
)

// bookingStore is the slice of the storage layer the handlers use.
// *storage.BookingRepository satisfies it.
type bookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, userID, key, bookingID string, statusCode int, response []byte) error
	Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID, bookingID string) (model.Booking, error)
	Cancel(ctx context.Context, tx pgx.Tx, userID, bookingID, reason string) (time.Time, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Booking, error)
}

type BookingHandler struct {
	repo       bookingStore
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	policy     policy.Provider
	catalog    catalog.Provider
	defaults   []time.Duration
	loc        *time.Location
	now        func() time.Time
}

func NewBookingHandler(repo bookingStore, outboxRepo *outbox.Repository, logger *slog.Logger, policyProvider policy.Provider, catalogProvider catalog.Provider, defaults []time.Duration, loc *time.Location) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
		policy:     policyProvider,
		catalog:    catalogProvider,
		defaults:   defaults,
		loc:        loc,
		now:        time.Now,
	}
}

type createBookingRequest struct {
	ProviderID    string `json:"provider_id"`
	ServiceType   string `json:"service_type"`
	Date          string `json:"date"` // YYYY-MM-DD in the service timezone
	Slot          string `json:"slot"` // 24-hour "HH:MM"
	Address       string `json:"address"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	AmountPaise   int64  `json:"amount_paise"`
}

type createBookingResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

type listBookingItem struct {
	BookingID   string `json:"booking_id"`
	ProviderID  string `json:"provider_id"`
	ServiceType string `json:"service_type"`
	Date        string `json:"date"`
	Slot        string `json:"slot"`
	SlotLabel   string `json:"slot_label"`
	Address     string `json:"address"`
	AmountPaise int64  `json:"amount_paise"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type slotsResponse struct {
	Date  string              `json:"date"`
	Slots []availability.Slot `json:"slots"`
}

// Slots returns the bookable start times for a date. Absent and past dates
// are not errors; they yield an empty set, matching the "select a date
// first" placeholder on the client.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeJSON(w, http.StatusOK, slotsResponse{Slots: []availability.Slot{}})
		return
	}
	selected, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	now := h.now().In(h.loc)
	if dateBefore(selected, now) {
		writeJSON(w, http.StatusOK, slotsResponse{Date: dateStr, Slots: []availability.Slot{}})
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID != "" && !h.providerOpenOn(r.Context(), providerID, dateStr) {
		writeJSON(w, http.StatusOK, slotsResponse{Date: dateStr, Slots: []availability.Slot{}})
		return
	}

	slots := availability.GenerateSlots(selected, now)
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{Date: dateStr, Slots: slots})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	req.Date = strings.TrimSpace(req.Date)
	req.Slot = strings.TrimSpace(req.Slot)
	req.Address = strings.TrimSpace(req.Address)
	req.CustomerName = strings.TrimSpace(req.CustomerName)

	if req.ProviderID == "" || req.ServiceType == "" || req.Date == "" || req.Slot == "" || req.CustomerName == "" || req.Address == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	if res := validate.Email(req.CustomerEmail); !res.Valid {
		http.Error(w, res.Reason, http.StatusBadRequest)
		return
	}
	if res := validate.DisposableEmail(req.CustomerEmail); !res.Valid {
		http.Error(w, res.Reason, http.StatusBadRequest)
		return
	}
	phone := validate.IndianPhone(req.CustomerPhone)
	if !phone.Valid {
		http.Error(w, phone.Message, http.StatusBadRequest)
		return
	}
	if req.AmountPaise < 0 {
		http.Error(w, "amount_paise must not be negative", http.StatusBadRequest)
		return
	}

	selected, err := time.ParseInLocation("2006-01-02", req.Date, h.loc)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	now := h.now().In(h.loc)
	if dateBefore(selected, now) {
		http.Error(w, "cannot book a past date", http.StatusUnprocessableEntity)
		return
	}

	booking := &model.Booking{
		UserID:        userID,
		ProviderID:    req.ProviderID,
		ServiceType:   req.ServiceType,
		ServiceDate:   selected,
		SlotValue:     req.Slot,
		Address:       req.Address,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone: phone.Formatted,
		AmountPaise:   req.AmountPaise,
		Status:        model.StatusPendingPayment,
	}
	if booking.AmountPaise == 0 {
		// Nothing to collect; skip the payment leg entirely.
		booking.Status = model.StatusConfirmed
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, userID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			// FinalizeIdempotency stores the exact response that was sent,
			// so the replay carries the booking's real status.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	if !h.providerOpenOn(ctx, req.ProviderID, req.Date) {
		h.rejectCreate(ctx, w, tx, userID, idempotencyKey, http.StatusUnprocessableEntity, "provider is not available on this date")
		return
	}

	// The offered set is recomputed at create time, so a slot chosen
	// before midnight or the top of the hour can no longer slip through.
	slots := availability.GenerateSlots(selected, now)
	if !availability.Contains(slots, req.Slot) {
		h.rejectCreate(ctx, w, tx, userID, idempotencyKey, http.StatusUnprocessableEntity, "slot is not available for this date")
		return
	}

	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "slot already booked for this provider", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"booking_id":     id,
		"user_id":        booking.UserID,
		"provider_id":    booking.ProviderID,
		"service_type":   booking.ServiceType,
		"date":           req.Date,
		"slot":           booking.SlotValue,
		"amount_paise":   booking.AmountPaise,
		"status":         booking.Status,
		"customer_email": booking.CustomerEmail,
		"customer_phone": booking.CustomerPhone,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}

	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   id,
		EventType:     "booking.created.v1",
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	h.enqueueReminders(ctx, tx, id, booking, now)

	respBody, err := json.Marshal(createBookingResponse{BookingID: id, Status: booking.Status})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, userID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, userID, req.BookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	if booking.Status == model.StatusCancelled && booking.CancelledAt != nil {
		// Cancel is idempotent.
		h.writeCancelResponse(w, booking.ID, booking.CancelledAt.UTC())
		return
	}
	if booking.Status == model.StatusCompleted {
		http.Error(w, "completed booking cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, userID, booking.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}

	cancelPayload, err := json.Marshal(map[string]any{
		"booking_id":     booking.ID,
		"user_id":        booking.UserID,
		"provider_id":    booking.ProviderID,
		"service_type":   booking.ServiceType,
		"date":           booking.ServiceDate.Format("2006-01-02"),
		"slot":           booking.SlotValue,
		"customer_email": booking.CustomerEmail,
		"cancelled_at":   cancelledAt.UTC().Format(time.RFC3339),
		"reason":         req.Reason,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   booking.ID,
		EventType:     "booking.cancelled.v1",
		Payload:       cancelPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, booking.ID, cancelledAt.UTC())
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]listBookingItem, 0, len(bookings))
	for _, b := range bookings {
		item := listBookingItem{
			BookingID:   b.ID,
			ProviderID:  b.ProviderID,
			ServiceType: b.ServiceType,
			Date:        b.ServiceDate.Format("2006-01-02"),
			Slot:        b.SlotValue,
			SlotLabel:   slotLabel(b.SlotValue),
			Address:     b.Address,
			AmountPaise: b.AmountPaise,
			Status:      b.Status,
			CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, items)
}

// providerOpenOn consults the catalog when the gRPC provider is wired in.
// Without it (or on catalog errors) the day counts as open; the catalog is
// advisory, the slot-uniqueness constraint is the hard gate.
func (h *BookingHandler) providerOpenOn(ctx context.Context, providerID, date string) bool {
	if h.catalog == nil {
		return true
	}
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	day, err := h.catalog.GetServiceDay(reqCtx, providerID, date)
	if err != nil {
		h.logger.Warn("service day lookup failed; treating day as open", "err", err)
		return true
	}
	return day.Open
}

func (h *BookingHandler) enqueueReminders(ctx context.Context, tx pgx.Tx, bookingID string, b *model.Booking, now time.Time) {
	offsets := h.defaults
	if h.policy != nil {
		if policyOffsets, err := h.policy.ReminderOffsets(ctx, b.ProviderID); err == nil && len(policyOffsets) > 0 {
			offsets = policyOffsets
		} else if err != nil {
			h.logger.Warn("policy offsets fetch failed; using defaults", "err", err)
		}
	}

	startAt := slotStart(b.ServiceDate, b.SlotValue)
	for _, offset := range offsets {
		remindAt := startAt.Add(-offset)
		if remindAt.Before(now) {
			continue
		}
		h.enqueueReminder(ctx, tx, bookingID, b, remindAt, "email", b.CustomerEmail)
		h.enqueueReminder(ctx, tx, bookingID, b, remindAt, "sms", b.CustomerPhone)
	}
}

func (h *BookingHandler) enqueueReminder(ctx context.Context, tx pgx.Tx, bookingID string, b *model.Booking, remindAt time.Time, channel string, recipient string) {
	if strings.TrimSpace(recipient) == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"booking_id":  bookingID,
		"provider_id": b.ProviderID,
		"channel":     channel,
		"recipient":   recipient,
		"remind_at":   remindAt.UTC().Format(time.RFC3339),
		"template_data": map[string]any{
			"customer_name": b.CustomerName,
			"service_type":  b.ServiceType,
			"date":          b.ServiceDate.Format("2006-01-02"),
			"slot":          b.SlotValue,
		},
	})
	if err != nil {
		h.logger.Error("failed to build reminder payload", "err", err)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   bookingID,
		EventType:     "booking.reminder.requested.v1",
		Payload:       payload,
	}); err != nil {
		h.logger.Error("failed to enqueue reminder", "err", err)
	}
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, bookingID string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		BookingID:   bookingID,
		Status:      model.StatusCancelled,
		CancelledAt: cancelledAt.Format(time.RFC3339),
	})
}

// rejectCreate records a terminal rejection against the idempotency key, if
// one was supplied, so a retry replays the same answer instead of racing the
// availability check again.
func (h *BookingHandler) rejectCreate(ctx context.Context, w http.ResponseWriter, tx pgx.Tx, userID, key string, statusCode int, msg string) {
	if key != "" {
		body, err := json.Marshal(map[string]string{"error": msg})
		if err == nil {
			if err := h.repo.FinalizeIdempotency(ctx, tx, userID, key, "", statusCode, body); err != nil {
				h.logger.Error("failed to finalize idempotency key", "err", err)
			} else if err := tx.Commit(ctx); err != nil {
				h.logger.Error("failed to commit idempotency record", "err", err)
			}
		}
	}
	http.Error(w, msg, statusCode)
}

// dateBefore reports whether a's calendar day is strictly before b's.
func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// slotStart combines the service date with the "HH:MM" slot value.
func slotStart(date time.Time, slot string) time.Time {
	hh, mm, ok := parseSlotClock(slot)
	if !ok {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hh, mm, 0, 0, date.Location())
}

func parseSlotClock(slot string) (int, int, bool) {
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

func slotLabel(value string) string {
	hh, mm, ok := parseSlotClock(value)
	if !ok {
		return value
	}
	suffix := "AM"
	if hh >= 12 {
		suffix = "PM"
	}
	h := hh % 12
	if h == 0 {
		h = 12
	}
	if mm == 0 {
		return strconv.Itoa(h) + ":00 " + suffix
	}
	return strconv.Itoa(h) + ":" + pad2(mm) + " " + suffix
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
