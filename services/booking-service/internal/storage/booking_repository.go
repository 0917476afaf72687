package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sevahq/seva/libs/db"
	"github.com/sevahq/seva/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	UserID          string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockIdempotencyKey claims (user, key) inside tx. The returned bool says
// whether the key existed before; an existing row is returned locked so a
// concurrent retry blocks until the first request finalizes.
func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, userID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (user_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
	`, userID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, userID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, userID, key, bookingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key, bookingID, statusCode, response)
	return err
}

// Create inserts the booking. A partial unique index on
// (provider_id, service_date, slot_value) WHERE status <> 'cancelled'
// rejects double-booked slots; callers detect that with IsConflict.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(user_id, provider_id, service_type, service_date, slot_value, address,
			 customer_name, customer_email, customer_phone, amount_paise, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, b.UserID, b.ProviderID, b.ServiceType, b.ServiceDate, b.SlotValue, b.Address,
		b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.AmountPaise, b.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, userID, bookingID string) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, user_id, provider_id, service_type, service_date, slot_value, address,
			customer_name, customer_email, customer_phone, amount_paise, status,
			cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM bookings
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, bookingID, userID)
	return scanBooking(row)
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, userID, bookingID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND user_id = $2
		RETURNING cancelled_at
	`, bookingID, userID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// MarkConfirmed flips a pending booking after the payment event arrives.
// Returns the owning user id so the consumer can build notification events.
func (r *BookingRepository) MarkConfirmed(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'confirmed'
		WHERE id = $1 AND status = 'pending_payment'
		RETURNING id, user_id, provider_id, service_type, service_date, slot_value, address,
			customer_name, customer_email, customer_phone, amount_paise, status,
			cancelled_at, COALESCE(cancellation_reason, ''), created_at
	`, bookingID)
	return scanBooking(row)
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, provider_id, service_type, service_date, slot_value, address,
			customer_name, customer_email, customer_phone, amount_paise, status,
			cancelled_at, COALESCE(cancellation_reason, ''), created_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY service_date DESC, slot_value DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ProviderID,
		&b.ServiceType,
		&b.ServiceDate,
		&b.SlotValue,
		&b.Address,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.AmountPaise,
		&b.Status,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, userID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT user_id::text,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE user_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, userID, key).Scan(
		&rec.UserID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
