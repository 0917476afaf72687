//go:build protogen

package catalog

import (
	"context"
	"time"

	"github.com/sevahq/seva/libs/grpcx"
	catalogv1 "github.com/sevahq/seva/protos/gen/catalog/v1"
)

type ServiceDay struct {
	Open     bool
	Timezone string
}

type Provider interface {
	GetServiceDay(ctx context.Context, providerID string, date string) (ServiceDay, error)
}

type grpcProvider struct {
	client catalogv1.CatalogServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: catalogv1.NewCatalogServiceClient(conn)}, nil
}

func (p *grpcProvider) GetServiceDay(ctx context.Context, providerID string, date string) (ServiceDay, error) {
	resp, err := p.client.GetServiceDay(ctx, &catalogv1.ServiceDayRequest{
		ProviderId: providerID,
		Date:       date,
	})
	if err != nil {
		return ServiceDay{}, err
	}
	return ServiceDay{
		Open:     resp.GetOpen(),
		Timezone: resp.GetTimezone(),
	}, nil
}
