package model

import "time"

// Booking statuses. A booking starts pending until the checkout completes,
// then moves to confirmed; completed is set after the service date passes.
const (
	StatusPendingPayment = "pending_payment"
	StatusConfirmed      = "confirmed"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
)

type Booking struct {
	ID            string
	UserID        string
	ProviderID    string
	ServiceType   string
	ServiceDate   time.Time // date only, midnight in the service timezone
	SlotValue     string    // 24-hour "HH:MM" start time
	Address       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	AmountPaise   int64
	Status        string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

type CartItem struct {
	ID          string
	UserID      string
	ProviderID  string
	ServiceType string
	PricePaise  int64
	CreatedAt   time.Time
}
