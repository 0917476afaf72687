//go:build !protogen

package policy

import (
	"log/slog"
	"time"
)

func NewCatalogPolicyProvider(_ *slog.Logger, offsets []time.Duration, _ string) (Provider, error) {
	return NewStaticProvider(offsets), nil
}
