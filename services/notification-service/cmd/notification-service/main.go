package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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
	"github.com/sevahq/seva/services/notification-service/internal/consumer"
	"github.com/sevahq/seva/services/notification-service/internal/email"
	"github.com/sevahq/seva/services/notification-service/internal/inbox"
	"github.com/sevahq/seva/services/notification-service/internal/outbox"
	"github.com/sevahq/seva/services/notification-service/internal/sms"
	"github.com/sevahq/seva/services/notification-service/internal/storage"
)

type reminderPayload struct {
	BookingID    string         `json:"booking_id"`
	ProviderID   string         `json:"provider_id"`
	Channel      string         `json:"channel"`
	Recipient    string         `json:"recipient"`
	RemindAt     string         `json:"remind_at"`
	TemplateData map[string]any `json:"template_data"`
}

type bookingEventPayload struct {
	BookingID     string `json:"booking_id"`
	UserID        string `json:"user_id"`
	ProviderID    string `json:"provider_id"`
	ServiceType   string `json:"service_type"`
	Date          string `json:"date"`
	Slot          string `json:"slot"`
	AmountPaise   int64  `json:"amount_paise"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	CancelledAt   string `json:"cancelled_at"`
	Reason        string `json:"reason"`
}

// delivery is the outcome of one send attempt, persisted and echoed to
// the outbox as a receipt event.
type delivery struct {
	bookingID     string
	providerID    string
	kind          string
	channel       string
	recipient     string
	payload       map[string]any
	status        string
	failureReason string
	providerTag   string
}

type dispatcher struct {
	pool        *db.Pool
	repo        *storage.Repository
	outboxRepo  *outbox.Repository
	emailSender email.Sender
	smsSender   sms.Sender
	failSuffix  string
}

func (d *dispatcher) send(ctx context.Context, dlv *delivery, subject string, body string) {
	if d.failSuffix != "" && strings.HasSuffix(dlv.recipient, d.failSuffix) {
		dlv.status = "failed"
		dlv.failureReason = "simulated failure"
		return
	}
	switch dlv.channel {
	case "email":
		if err := d.emailSender.Send(dlv.recipient, subject, body); err != nil {
			dlv.status = "failed"
			dlv.failureReason = err.Error()
			return
		}
		dlv.providerTag = "smtp"
	case "sms":
		if err := d.smsSender.Send(ctx, dlv.recipient, body); err != nil {
			dlv.status = "failed"
			dlv.failureReason = err.Error()
			return
		}
		dlv.providerTag = d.smsSender.ProviderID()
	default:
		dlv.status = "failed"
		dlv.failureReason = "unsupported channel: " + dlv.channel
		return
	}
	dlv.status = "sent"
}

func (d *dispatcher) record(ctx context.Context, dlv delivery) error {
	if err := d.repo.Insert(ctx, storage.Notification{
		BookingID:     dlv.bookingID,
		ProviderID:    dlv.providerID,
		Kind:          dlv.kind,
		Channel:       dlv.channel,
		Recipient:     dlv.recipient,
		Payload:       dlv.payload,
		Status:        dlv.status,
		FailureReason: dlv.failureReason,
	}); err != nil {
		return err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventType := "notification.sent.v1"
	fields := map[string]any{
		"booking_id":  dlv.bookingID,
		"provider_id": dlv.providerID,
		"kind":        dlv.kind,
		"channel":     dlv.channel,
	}
	if dlv.status == "failed" {
		eventType = "notification.failed.v1"
		fields["error_reason"] = dlv.failureReason
		fields["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	} else {
		tag := dlv.providerTag
		if strings.TrimSpace(tag) == "" {
			tag = "unknown"
		}
		fields["provider_id_tag"] = tag
		fields["sent_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	eventPayload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := d.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   dlv.bookingID,
		EventType:     eventType,
		Payload:       eventPayload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *dispatcher) handleReminder(ctx context.Context, msg kafka.Message) error {
	var payload reminderPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return nil // poison message, skip
	}
	if payload.BookingID == "" || payload.Channel == "" || payload.Recipient == "" || payload.RemindAt == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, payload.RemindAt); err != nil {
		return nil
	}

	subject, body := reminderMessage(payload)
	dlv := delivery{
		bookingID:  payload.BookingID,
		providerID: payload.ProviderID,
		kind:       "reminder",
		channel:    strings.ToLower(payload.Channel),
		recipient:  payload.Recipient,
		payload:    payload.TemplateData,
	}
	d.send(ctx, &dlv, subject, body)
	return d.record(ctx, dlv)
}

func (d *dispatcher) handleBookingEvent(ctx context.Context, msg kafka.Message, kind string) error {
	var payload bookingEventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return nil
	}
	if payload.BookingID == "" || payload.CustomerEmail == "" {
		return nil
	}

	subject, body := bookingMessage(kind, payload)
	dlv := delivery{
		bookingID:  payload.BookingID,
		providerID: payload.ProviderID,
		kind:       kind,
		channel:    "email",
		recipient:  payload.CustomerEmail,
		payload: map[string]any{
			"service_type": payload.ServiceType,
			"date":         payload.Date,
			"slot":         payload.Slot,
		},
	}
	d.send(ctx, &dlv, subject, body)
	return d.record(ctx, dlv)
}

func reminderMessage(p reminderPayload) (subject string, body string) {
	subject = "Upcoming service booking"
	serviceType, _ := p.TemplateData["service_type"].(string)
	date, _ := p.TemplateData["date"].(string)
	slot, _ := p.TemplateData["slot"].(string)
	if serviceType != "" && date != "" && slot != "" {
		body = fmt.Sprintf("Reminder: your %s booking is on %s at %s.", serviceType, date, slot)
	} else {
		body = fmt.Sprintf("Reminder for booking %s at %s.", p.BookingID, p.RemindAt)
	}
	if name, ok := p.TemplateData["customer_name"].(string); ok && name != "" {
		body = fmt.Sprintf("Hi %s, %s", name, lowerFirst(body))
	}
	return subject, body
}

func bookingMessage(kind string, p bookingEventPayload) (subject string, body string) {
	switch kind {
	case "booking_confirmed":
		subject = "Booking confirmed"
		body = fmt.Sprintf("Your %s booking on %s at %s is confirmed.", p.ServiceType, p.Date, p.Slot)
	case "booking_cancelled":
		subject = "Booking cancelled"
		body = fmt.Sprintf("Your %s booking on %s at %s has been cancelled.", p.ServiceType, p.Date, p.Slot)
		if strings.TrimSpace(p.Reason) != "" {
			body += " Reason: " + p.Reason
		}
	default:
		subject = "Booking update"
		body = fmt.Sprintf("There is an update on your booking %s.", p.BookingID)
	}
	return subject, body
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@seva.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	smsWebhookURL := config.String("SMS_WEBHOOK_URL", "")
	smsWebhookToken := config.String("SMS_WEBHOOK_TOKEN", "")
	var smsSender sms.Sender
	switch smsProvider {
	case "webhook":
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	case "noop":
		smsSender = sms.NewNoopSender()
	default:
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	}

	disp := &dispatcher{
		pool:        pool,
		repo:        notificationsRepo,
		outboxRepo:  outboxRepo,
		emailSender: emailSender,
		smsSender:   smsSender,
		failSuffix:  config.String("NOTIFICATION_FAIL_SUFFIX", ""),
	}

	reminderTopic := config.String("KAFKA_REMINDER_TOPIC", "scheduler.reminder.due.v1")
	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  []string{reminderTopic, "booking.confirmed.v1", "booking.cancelled.v1"},
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var err error
		switch msg.Topic {
		case "booking.confirmed.v1":
			err = disp.handleBookingEvent(ctx, msg, "booking_confirmed")
		case "booking.cancelled.v1":
			err = disp.handleBookingEvent(ctx, msg, "booking_cancelled")
		default:
			err = disp.handleReminder(ctx, msg)
		}
		if err != nil {
			logger.Error("notification dispatch failed", "err", err, "topic", msg.Topic)
			return err
		}
		logger.Info("notification processed", "topic", msg.Topic)
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
