package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sevahq/seva/libs/config"
	"github.com/sevahq/seva/libs/db"
	"github.com/sevahq/seva/libs/httpx"
	"github.com/sevahq/seva/libs/kafkax"
	otelx "github.com/sevahq/seva/libs/otel"
	"github.com/sevahq/seva/libs/runtime"
	"github.com/sevahq/seva/services/booking-service/internal/catalog"
	"github.com/sevahq/seva/services/booking-service/internal/consumer"
	"github.com/sevahq/seva/services/booking-service/internal/handlers"
	"github.com/sevahq/seva/services/booking-service/internal/inbox"
	"github.com/sevahq/seva/services/booking-service/internal/model"
	"github.com/sevahq/seva/services/booking-service/internal/outbox"
	"github.com/sevahq/seva/services/booking-service/internal/policy"
	"github.com/sevahq/seva/services/booking-service/internal/storage"
)

func main() {
	logger := runtime.NewLogger("booking-service")

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv("booking-service"))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("SERVICE_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		logger.Error("invalid SERVICE_TIMEZONE", "err", err)
		os.Exit(1)
	}

	defaultOffsets := parseReminderOffsets(config.String("REMINDER_OFFSETS", "24h,2h"))

	catalogAddr := config.String("CATALOG_GRPC_ADDR", "")
	var catalogProvider catalog.Provider
	if catalogAddr != "" {
		catalogProvider, err = catalog.NewProvider(catalogAddr)
		if err != nil {
			logger.Error("catalog provider init failed", "err", err)
			os.Exit(1)
		}
	}
	policyProvider, err := policy.NewCatalogPolicyProvider(logger, defaultOffsets, catalogAddr)
	if err != nil {
		logger.Error("policy provider init failed", "err", err)
		os.Exit(1)
	}

	bookingRepo := storage.NewBookingRepository(pool)
	cartRepo := storage.NewCartRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "localhost:9092")

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	go startPaymentConsumer(ctx, logger, brokers, inboxRepo, bookingRepo, outboxRepo)

	bookingHandler := handlers.NewBookingHandler(bookingRepo, outboxRepo, logger, policyProvider, catalogProvider, defaultOffsets, loc)
	cartHandler := handlers.NewCartHandler(cartRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/bookings", dispatch(bookingHandler.List, bookingHandler.Create))
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/cart", cartHandler.List)
	mux.HandleFunc("/api/v1/cart/add", cartHandler.Add)
	mux.HandleFunc("/api/v1/cart/remove", cartHandler.Remove)
	mux.HandleFunc("/api/v1/cart/clear", cartHandler.Clear)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)

	port, err := config.Port("PORT", "8083")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "booking-service"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("booking-service listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}

// dispatch splits one route between its GET and POST handlers.
func dispatch(get, post http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			get(w, r)
		case http.MethodPost:
			post(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// startPaymentConsumer confirms bookings when the payment service reports a
// completed charge, and emits the confirmation event for notifications.
func startPaymentConsumer(ctx context.Context, logger *slog.Logger, brokers string, inboxRepo *inbox.Repository, bookingRepo *storage.BookingRepository, outboxRepo *outbox.Repository) {
	c := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
		Topic:   "payment.completed.v1",
	}, func(ctx context.Context, msg kafka.Message) error {
		var evt paymentCompletedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("malformed payment.completed.v1 payload", "err", err)
			return nil // poison message, do not retry
		}
		if evt.BookingID == "" {
			return nil
		}

		tx, err := bookingRepo.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		booking, err := bookingRepo.MarkConfirmed(ctx, tx, evt.BookingID)
		if err != nil {
			if storage.IsNotFound(err) {
				// Already confirmed or cancelled; nothing to do.
				return nil
			}
			return err
		}

		payload, err := json.Marshal(map[string]any{
			"booking_id":     booking.ID,
			"user_id":        booking.UserID,
			"provider_id":    booking.ProviderID,
			"service_type":   booking.ServiceType,
			"date":           booking.ServiceDate.Format("2006-01-02"),
			"slot":           booking.SlotValue,
			"amount_paise":   booking.AmountPaise,
			"customer_email": booking.CustomerEmail,
			"customer_phone": booking.CustomerPhone,
		})
		if err != nil {
			return err
		}
		if err := outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "booking",
			AggregateID:   booking.ID,
			EventType:     "booking.confirmed.v1",
			Payload:       payload,
		}); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info("booking confirmed", "booking_id", booking.ID, "status", model.StatusConfirmed)
		return nil
	})
	c.Run(ctx)
}

type paymentCompletedEvent struct {
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func parseReminderOffsets(raw string) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil || d <= 0 {
			continue
		}
		offsets = append(offsets, d)
	}
	return offsets
}
