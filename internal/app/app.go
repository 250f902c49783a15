package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"openweather-device/internal/config"
	"openweather-device/internal/extract"
	"openweather-device/internal/mqtt"
	"openweather-device/internal/openweather"
	"openweather-device/internal/telemetry"
)

// Broker is the transport a poll cycle publishes through.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect()
	Sink() telemetry.Sink
}

// Source produces one cycle's measurements.
type Source interface {
	PublishData(ctx context.Context, sink telemetry.Sink) openweather.CycleStats
}

// Runner is the sequential poll loop: connect, publish every endpoint,
// disconnect, sleep.
type Runner struct {
	broker   Broker
	source   Source
	interval time.Duration
	logger   *slog.Logger
}

func NewRunner(broker Broker, source Source, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		broker:   broker,
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is done. A cancelled context is a clean stop and
// returns nil.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("starting poll loop", "interval", r.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("received stop signal, stopping")
			r.broker.Disconnect()
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			continue
		}

		r.Cycle(ctx)
		timer.Reset(r.interval)
	}
}

// Cycle runs a single connect/publish/disconnect pass. A failed connect skips
// the cycle.
func (r *Runner) Cycle(ctx context.Context) openweather.CycleStats {
	started := time.Now()

	if err := r.broker.Connect(ctx); err != nil {
		r.logger.Error("broker connect failed, skipping cycle", "error", err)
		return openweather.CycleStats{}
	}
	defer r.broker.Disconnect()

	stats := r.source.PublishData(ctx, r.broker.Sink())
	r.logger.Info("poll cycle complete",
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"published", stats.Published,
		"took", time.Since(started).Round(time.Millisecond),
	)
	return stats
}

// Run wires the production collaborators from cfg and runs the loop.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("initializing device", "config", cfg)

	endpoints, err := openweather.NewEndpoints(cfg)
	if err != nil {
		return fmt.Errorf("endpoints: %w", err)
	}

	source := openweather.NewSource(
		openweather.NewClient(nil, logger.With("component", "fetcher")),
		endpoints,
		extract.New(logger.With("component", "extractor")),
		logger.With("component", "source"),
	)
	publisher := mqtt.NewPublisher(cfg, logger.With("component", "mqtt"))

	return NewRunner(publisher, source, cfg.PollInterval, logger).Run(ctx)
}
