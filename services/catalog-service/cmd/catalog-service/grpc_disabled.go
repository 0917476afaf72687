//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/sevahq/seva/libs/db"
	"github.com/sevahq/seva/services/catalog-service/internal/storage"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *db.Pool, _ *storage.Repository) error {
	return nil
}
