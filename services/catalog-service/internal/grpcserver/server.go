//go:build protogen

package grpcserver

import (
	"context"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"

	"github.com/sevahq/seva/libs/config"
	"github.com/sevahq/seva/libs/db"
	catalogv1 "github.com/sevahq/seva/protos/gen/catalog/v1"
	"github.com/sevahq/seva/services/catalog-service/internal/storage"
)

type server struct {
	catalogv1.UnimplementedCatalogServiceServer
	pool *db.Pool
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, pool *db.Pool, repo *storage.Repository) {
	catalogv1.RegisterCatalogServiceServer(grpcServer, &server{pool: pool, repo: repo})
}

func (s *server) GetProviderProfile(ctx context.Context, req *catalogv1.ProviderProfileRequest) (*catalogv1.ProviderProfileResponse, error) {
	offsets := parseOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,120"))
	timezone := config.String("SERVICE_TIMEZONE", "Asia/Kolkata")
	name := ""

	if s.repo != nil && req.GetProviderId() != "" {
		if p, err := s.repo.GetProvider(ctx, req.GetProviderId()); err == nil {
			name = p.Name
		}
		if profile, err := s.repo.GetOrCreateProfile(ctx, req.GetProviderId()); err == nil {
			if tz := strings.TrimSpace(profile.Timezone); tz != "" {
				timezone = tz
			}
			if custom := positiveOffsets(profile.OffsetsMins); len(custom) > 0 {
				offsets = custom
			}
		}
	}

	return &catalogv1.ProviderProfileResponse{
		ProviderId: req.GetProviderId(),
		Name:       name,
		ReminderPolicy: &catalogv1.ReminderPolicy{
			ReminderOffsetsMinutes: offsets,
			Timezone:               timezone,
		},
	}, nil
}

// GetServiceDay reports whether a provider takes bookings on a date. Missing
// data means open; the day-off table only records exceptions.
func (s *server) GetServiceDay(ctx context.Context, req *catalogv1.ServiceDayRequest) (*catalogv1.ServiceDayResponse, error) {
	timezone := config.String("SERVICE_TIMEZONE", "Asia/Kolkata")
	resp := &catalogv1.ServiceDayResponse{
		ProviderId: req.GetProviderId(),
		Date:       req.GetDate(),
		Open:       true,
		Timezone:   timezone,
	}
	if s.repo == nil || req.GetProviderId() == "" || req.GetDate() == "" {
		return resp, nil
	}

	if profile, err := s.repo.GetOrCreateProfile(ctx, req.GetProviderId()); err == nil {
		if tz := strings.TrimSpace(profile.Timezone); tz != "" {
			resp.Timezone = tz
		}
	}

	day, err := time.Parse("2006-01-02", req.GetDate())
	if err != nil {
		resp.Open = false
		return resp, nil
	}
	off, err := s.repo.IsDayOff(ctx, req.GetProviderId(), day)
	if err != nil {
		// Fail open; the booking service treats the catalog as advisory.
		return resp, nil
	}
	resp.Open = !off
	return resp, nil
}

func positiveOffsets(mins []int) []int32 {
	var out []int32
	for _, v := range mins {
		if v > 0 {
			out = append(out, int32(v))
		}
	}
	return out
}

func parseOffsets(raw string) []int32 {
	var out []int32
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			continue
		}
		out = append(out, int32(mins))
	}
	if len(out) == 0 {
		out = []int32{1440}
	}
	return out
}
