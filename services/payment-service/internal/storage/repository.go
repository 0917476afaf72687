package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sevahq/seva/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// PaymentSession tracks one Stripe Checkout session for one booking. The
// webhook is the source of truth for the terminal status; the return
// token only guards the public redirect-ack endpoint.
type PaymentSession struct {
	StripeSessionID       string
	BookingID             string
	UserID                string
	AmountPaise           int64
	Currency              string
	Status                string
	StripePaymentIntentID string
	URL                   string
	ReturnToken           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
	CanceledAt            *time.Time
	ReturnSeenAt          *time.Time
	ExpiredAt             *time.Time
}

func (r *Repository) UpsertPaymentSession(ctx context.Context, tx pgx.Tx, s PaymentSession) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payment_sessions (stripe_session_id, booking_id, user_id, amount_paise, currency, status, url, return_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stripe_session_id)
		DO UPDATE SET booking_id = EXCLUDED.booking_id,
		              user_id = EXCLUDED.user_id,
		              amount_paise = EXCLUDED.amount_paise,
		              currency = EXCLUDED.currency,
		              status = EXCLUDED.status,
		              url = EXCLUDED.url,
		              updated_at = now()
	`, s.StripeSessionID, s.BookingID, s.UserID, s.AmountPaise, defaultIfEmpty(s.Currency, "inr"), s.Status, nullIfEmpty(s.URL), nullIfEmpty(s.ReturnToken))
	return err
}

func (r *Repository) MarkSessionCompleted(ctx context.Context, tx pgx.Tx, stripeSessionID string, completedAt time.Time, paymentIntentID string) (PaymentSession, error) {
	row := tx.QueryRow(ctx, `
		UPDATE payment_sessions
		SET status = 'completed',
		    stripe_payment_intent_id = $3,
		    completed_at = $2,
		    updated_at = now()
		WHERE stripe_session_id = $1 AND status <> 'completed'
		RETURNING stripe_session_id, booking_id::text, user_id::text, amount_paise, currency, status,
		          COALESCE(stripe_payment_intent_id, ''), COALESCE(url, ''), COALESCE(return_token, ''),
		          created_at, updated_at, completed_at, canceled_at, return_seen_at, expired_at
	`, stripeSessionID, completedAt, nullIfEmpty(paymentIntentID))
	return scanSession(row)
}

func (r *Repository) MarkSessionExpired(ctx context.Context, tx pgx.Tx, stripeSessionID string, expiredAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE payment_sessions
		SET status = 'expired',
		    expired_at = $2,
		    updated_at = now()
		WHERE stripe_session_id = $1 AND status <> 'completed'
	`, stripeSessionID, expiredAt)
	return err
}

// AckReturn records that the customer came back from Stripe. A cancel
// result only sticks when the webhook has not already completed the
// session.
func (r *Repository) AckReturn(ctx context.Context, tx pgx.Tx, stripeSessionID string, token string, result string, seenAt time.Time) error {
	if strings.TrimSpace(result) == "" {
		result = "unknown"
	}
	_, err := tx.Exec(ctx, `
		UPDATE payment_sessions
		SET return_seen_at = $4,
		    status = CASE
		      WHEN $3 = 'cancel' AND status <> 'completed' THEN 'canceled'
		      ELSE status
		    END,
		    canceled_at = CASE
		      WHEN $3 = 'cancel' AND status <> 'completed' THEN COALESCE(canceled_at, $4)
		      ELSE canceled_at
		    END,
		    updated_at = now()
		WHERE stripe_session_id = $1 AND return_token = $2
	`, stripeSessionID, token, result, seenAt)
	return err
}

func (r *Repository) GetSession(ctx context.Context, stripeSessionID string) (PaymentSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT stripe_session_id, booking_id::text, user_id::text, amount_paise, currency, status,
		       COALESCE(stripe_payment_intent_id, ''), COALESCE(url, ''), COALESCE(return_token, ''),
		       created_at, updated_at, completed_at, canceled_at, return_seen_at, expired_at
		FROM payment_sessions
		WHERE stripe_session_id = $1
	`, stripeSessionID)
	return scanSession(row)
}

func (r *Repository) GetSessionByBooking(ctx context.Context, bookingID string) (PaymentSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT stripe_session_id, booking_id::text, user_id::text, amount_paise, currency, status,
		       COALESCE(stripe_payment_intent_id, ''), COALESCE(url, ''), COALESCE(return_token, ''),
		       created_at, updated_at, completed_at, canceled_at, return_seen_at, expired_at
		FROM payment_sessions
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingID)
	return scanSession(row)
}

// ListOpenSessions returns sessions still waiting on Stripe, oldest first,
// for the reconciler to re-check.
func (r *Repository) ListOpenSessions(ctx context.Context, olderThan time.Duration, limit int) ([]PaymentSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT stripe_session_id, booking_id::text, user_id::text, amount_paise, currency, status,
		       COALESCE(stripe_payment_intent_id, ''), COALESCE(url, ''), COALESCE(return_token, ''),
		       created_at, updated_at, completed_at, canceled_at, return_seen_at, expired_at
		FROM payment_sessions
		WHERE status = 'created' AND created_at < now() - make_interval(secs => $1)
		ORDER BY created_at ASC
		LIMIT $2
	`, olderThan.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (PaymentSession, error) {
	var s PaymentSession
	err := row.Scan(
		&s.StripeSessionID,
		&s.BookingID,
		&s.UserID,
		&s.AmountPaise,
		&s.Currency,
		&s.Status,
		&s.StripePaymentIntentID,
		&s.URL,
		&s.ReturnToken,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.CompletedAt,
		&s.CanceledAt,
		&s.ReturnSeenAt,
		&s.ExpiredAt,
	)
	if err != nil {
		return PaymentSession{}, err
	}
	return s, nil
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

func (r *Repository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	var payload any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}

type AuditEvent struct {
	EventType string
	ActorType string
	ActorID   string
	BookingID string
	Metadata  []byte
}

func (r *Repository) InsertAuditEvent(ctx context.Context, tx pgx.Tx, evt AuditEvent) error {
	var payload any
	if len(evt.Metadata) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(evt.Metadata, &payload); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_type, actor_id, booking_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, evt.EventType, evt.ActorType, nullIfEmpty(evt.ActorID), nullIfEmpty(evt.BookingID), payload)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func defaultIfEmpty(s string, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
