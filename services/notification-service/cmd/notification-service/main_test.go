package main

import (
	"strings"
	"testing"
)

func TestReminderMessageWithTemplateData(t *testing.T) {
	subject, body := reminderMessage(reminderPayload{
		BookingID: "b1",
		RemindAt:  "2026-09-01T08:00:00Z",
		TemplateData: map[string]any{
			"customer_name": "Asha",
			"service_type":  "plumbing",
			"date":          "2026-09-01",
			"slot":          "10:00",
		},
	})
	if subject != "Upcoming service booking" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Hi Asha") {
		t.Errorf("body should greet the customer: %q", body)
	}
	if !strings.Contains(body, "plumbing") || !strings.Contains(body, "2026-09-01") || !strings.Contains(body, "10:00") {
		t.Errorf("body missing booking details: %q", body)
	}
}

func TestReminderMessageFallsBackToBookingID(t *testing.T) {
	_, body := reminderMessage(reminderPayload{
		BookingID: "b1",
		RemindAt:  "2026-09-01T08:00:00Z",
	})
	if !strings.Contains(body, "b1") {
		t.Errorf("fallback body should reference the booking: %q", body)
	}
}

func TestBookingMessageCancelledIncludesReason(t *testing.T) {
	subject, body := bookingMessage("booking_cancelled", bookingEventPayload{
		BookingID:   "b1",
		ServiceType: "cleaning",
		Date:        "2026-09-02",
		Slot:        "14:00",
		Reason:      "customer request",
	})
	if subject != "Booking cancelled" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "customer request") {
		t.Errorf("body should carry the cancel reason: %q", body)
	}
}

func TestBookingMessageConfirmed(t *testing.T) {
	subject, body := bookingMessage("booking_confirmed", bookingEventPayload{
		ServiceType: "cleaning",
		Date:        "2026-09-02",
		Slot:        "14:00",
	})
	if subject != "Booking confirmed" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "confirmed") {
		t.Errorf("unexpected body %q", body)
	}
}
