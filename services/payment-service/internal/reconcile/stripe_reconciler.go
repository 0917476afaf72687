package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/sevahq/seva/libs/db"
	"github.com/sevahq/seva/services/payment-service/internal/outbox"
	"github.com/sevahq/seva/services/payment-service/internal/storage"
)

// StripeReconciler re-checks checkout sessions stuck in 'created'
// against Stripe, so bookings still confirm when a webhook delivery was
// lost.
type StripeReconciler struct {
	pool        *db.Pool
	repo        *storage.Repository
	outboxRepo  *outbox.Repository
	logger      *slog.Logger
	stripeKey   string
	batchSize   int
	minAge      time.Duration
	advisoryKey int64
}

type StripeReconcilerConfig struct {
	StripeSecretKey string
	Interval        time.Duration
	BatchSize       int
	MinSessionAge   time.Duration
	AdvisoryLockKey int64
}

func NewStripeReconciler(pool *db.Pool, repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg StripeReconcilerConfig) *StripeReconciler {
	key := strings.TrimSpace(cfg.StripeSecretKey)
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 50
	}
	minAge := cfg.MinSessionAge
	if minAge <= 0 {
		minAge = 10 * time.Minute
	}
	lockKey := cfg.AdvisoryLockKey
	if lockKey == 0 {
		// Stable-ish default; override via env if you run multiple payment instances.
		lockKey = 4242001
	}
	return &StripeReconciler{
		pool:        pool,
		repo:        repo,
		outboxRepo:  outboxRepo,
		logger:      logger,
		stripeKey:   key,
		batchSize:   bs,
		minAge:      minAge,
		advisoryKey: lockKey,
	}
}

func (r *StripeReconciler) Run(ctx context.Context, interval time.Duration) {
	if strings.TrimSpace(r.stripeKey) == "" {
		r.logger.Warn("stripe reconcile disabled: STRIPE_SECRET_KEY missing")
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	// Best-effort leader election for multi-instance deployments.
	// Only the instance holding the advisory lock will reconcile.
	for {
		if ctx.Err() != nil {
			return
		}
		var locked bool
		if err := r.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, r.advisoryKey).Scan(&locked); err != nil {
			r.logger.Error("stripe reconcile: failed to acquire advisory lock", "err", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if !locked {
			r.logger.Info("stripe reconcile: advisory lock held by another instance", "lock_key", r.advisoryKey)
			time.Sleep(30 * time.Second)
			continue
		}
		r.logger.Info("stripe reconcile: advisory lock acquired", "lock_key", r.advisoryKey)
		defer func() {
			_, _ = r.pool.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, r.advisoryKey)
		}()
		break
	}

	stripe.Key = r.stripeKey
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on startup to self-heal faster after downtime.
	r.reconcileOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcileOnce(ctx)
		}
	}
}

func (r *StripeReconciler) reconcileOnce(ctx context.Context) {
	sessions, err := r.repo.ListOpenSessions(ctx, r.minAge, r.batchSize)
	if err != nil {
		r.logger.Error("stripe reconcile: failed to list sessions", "err", err)
		return
	}
	if len(sessions) == 0 {
		return
	}

	for _, s := range sessions {
		if ctx.Err() != nil {
			return
		}

		stripeSess, err := checkoutsession.Get(s.StripeSessionID, nil)
		if err != nil {
			r.logger.Warn("stripe reconcile: failed to fetch session", "err", err, "stripe_session_id", s.StripeSessionID, "booking_id", s.BookingID)
			continue
		}

		switch {
		case stripeSess.Status == stripe.CheckoutSessionStatusComplete && stripeSess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
			if err := r.applyCompleted(ctx, s, stripeSess); err != nil {
				r.logger.Warn("stripe reconcile: apply completed failed", "err", err, "stripe_session_id", s.StripeSessionID, "booking_id", s.BookingID)
			}
		case stripeSess.Status == stripe.CheckoutSessionStatusExpired:
			if err := r.applyExpired(ctx, s); err != nil {
				r.logger.Warn("stripe reconcile: apply expired failed", "err", err, "stripe_session_id", s.StripeSessionID, "booking_id", s.BookingID)
			}
		}
	}
}

func (r *StripeReconciler) applyCompleted(ctx context.Context, s storage.PaymentSession, stripeSess *stripe.CheckoutSession) error {
	completedAt := time.Now().UTC()
	if stripeSess.Created > 0 {
		completedAt = time.Unix(stripeSess.Created, 0).UTC()
	}
	paymentIntentID := ""
	if stripeSess.PaymentIntent != nil {
		paymentIntentID = stripeSess.PaymentIntent.ID
	}

	tx, err := r.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sess, err := r.repo.MarkSessionCompleted(ctx, tx, s.StripeSessionID, completedAt, paymentIntentID)
	if err != nil {
		// Already completed by a webhook that raced us.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	payload, _ := json.Marshal(map[string]any{
		"booking_id":   sess.BookingID,
		"user_id":      sess.UserID,
		"session_id":   sess.StripeSessionID,
		"amount_paise": sess.AmountPaise,
		"completed_at": completedAt.Format(time.RFC3339),
	})
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "payment",
		AggregateID:   sess.BookingID,
		EventType:     "payment.completed.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}
	r.logger.Info("stripe reconcile: session completed", "stripe_session_id", sess.StripeSessionID, "booking_id", sess.BookingID)
	return tx.Commit(ctx)
}

func (r *StripeReconciler) applyExpired(ctx context.Context, s storage.PaymentSession) error {
	tx, err := r.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.repo.MarkSessionExpired(ctx, tx, s.StripeSessionID, time.Now().UTC()); err != nil {
		return err
	}
	r.logger.Info("stripe reconcile: session expired", "stripe_session_id", s.StripeSessionID, "booking_id", s.BookingID)
	return tx.Commit(ctx)
}
