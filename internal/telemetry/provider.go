package telemetry

import (
	"context"
	"fmt"

	"github.com/draftpace/draftpace/internal/config"
)

// Provider supplies the current roster once per tick.
type Provider interface {
	Roster(ctx context.Context) (*Roster, error)
}

// New returns the Provider selected by cfg.Source.
// Providers that hold a connection (mqtt) also implement io.Closer.
func New(cfg config.TelemetryConfig) (Provider, error) {
	switch cfg.Source {
	case "prometheus":
		client, err := buildHTTPClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build http client: %w", err)
		}
		return &promProvider{cfg: cfg, client: client}, nil
	case "mqtt":
		m, err := NewMQTT(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "static":
		return NewStatic(cfg.SelfID, cfg.Riders), nil
	default:
		return nil, fmt.Errorf("telemetry: unsupported source %q", cfg.Source)
	}
}
