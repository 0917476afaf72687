//go:build protogen

package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/sevahq/seva/libs/grpcx"
	catalogv1 "github.com/sevahq/seva/protos/gen/catalog/v1"
)

type grpcProvider struct {
	client catalogv1.CatalogServiceClient
}

// NewCatalogPolicyProvider asks the catalog for per-provider reminder
// offsets, falling back to the static defaults when the catalog is down.
func NewCatalogPolicyProvider(logger *slog.Logger, fallback []time.Duration, addr string) (Provider, error) {
	if addr == "" {
		return NewStaticProvider(fallback), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc policy provider unavailable, using fallback", "err", err)
		return NewStaticProvider(fallback), nil
	}

	logger.Info("grpc policy provider enabled", "addr", addr)
	return &grpcProvider{client: catalogv1.NewCatalogServiceClient(conn)}, nil
}

func (p *grpcProvider) ReminderOffsets(ctx context.Context, providerID string) ([]time.Duration, error) {
	resp, err := p.client.GetProviderProfile(ctx, &catalogv1.ProviderProfileRequest{ProviderId: providerID})
	if err != nil {
		return nil, err
	}
	var offsets []time.Duration
	for _, mins := range resp.GetReminderPolicy().GetReminderOffsetsMinutes() {
		if mins <= 0 {
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	return offsets, nil
}
