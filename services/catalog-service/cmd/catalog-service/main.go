package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sevahq/seva/libs/config"
	"github.com/sevahq/seva/libs/db"
	"github.com/sevahq/seva/libs/httpx"
	otelx "github.com/sevahq/seva/libs/otel"
	"github.com/sevahq/seva/libs/runtime"
	"github.com/sevahq/seva/services/catalog-service/internal/handlers"
	"github.com/sevahq/seva/services/catalog-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "catalog-service")
	port, err := config.Port("PORT", "8082")
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

	repo := storage.NewRepository(pool)
	catalogHandler := handlers.NewCatalogHandler(repo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/public/categories", catalogHandler.Categories)
	mux.HandleFunc("/api/v1/public/providers", catalogHandler.Providers)
	mux.HandleFunc("/api/v1/public/providers/get", catalogHandler.GetProvider)
	mux.HandleFunc("/api/v1/providers", catalogHandler.CreateProvider)
	mux.HandleFunc("/api/v1/providers/profile", catalogHandler.Profile)
	mux.HandleFunc("/api/v1/providers/days-off", catalogHandler.ListDaysOff)
	mux.HandleFunc("/api/v1/providers/days-off/add", catalogHandler.AddDayOff)
	mux.HandleFunc("/api/v1/providers/days-off/remove", catalogHandler.RemoveDayOff)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "catalog"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, pool, repo); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
