package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sevahq/seva/libs/db"
)

// Notification is one attempted delivery: a reminder, confirmation or
// cancellation on one channel to one recipient.
type Notification struct {
	BookingID     string
	ProviderID    string
	Kind          string // reminder | booking_confirmed | booking_cancelled
	Channel       string // email | sms
	Recipient     string
	Payload       map[string]any
	Status        string // sent | failed
	FailureReason string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	var reason any
	if strings.TrimSpace(n.FailureReason) != "" {
		reason = n.FailureReason
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_id, provider_id, kind, channel, recipient, payload, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.BookingID, n.ProviderID, n.Kind, n.Channel, n.Recipient, payload, n.Status, reason)
	return err
}

// CountByBooking reports deliveries per status for one booking, handy
// for support queries.
func (r *Repository) CountByBooking(ctx context.Context, bookingID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM notifications
		WHERE booking_id = $1
		GROUP BY status
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
