package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
)

// Reloader periodically rebuilds the registry from its source and swaps it
// into the holder. A failed rebuild keeps the active registry.
type Reloader struct {
	holder   *Holder
	source   Source
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewReloader creates a Reloader. Run does nothing when interval is zero.
func NewReloader(holder *Holder, source Source, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Reloader {
	return &Reloader{
		holder:   holder,
		source:   source,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run reloads on every tick until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.logger.Info("registry reload enabled", "source", r.source.Name(), "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.ReloadOnce(ctx)
		}
	}
}

// ReloadOnce rebuilds the registry and swaps it in on success.
func (r *Reloader) ReloadOnce(ctx context.Context) error {
	next, err := r.source.Load(ctx)
	if err != nil {
		r.logger.Error("registry reload failed, keeping previous registry",
			"source", r.source.Name(),
			"error", err,
		)
		r.metrics.RegistryReloads.WithLabelValues("error").Inc()
		return err
	}

	prev := r.holder.Swap(next)
	r.metrics.RegistryReloads.WithLabelValues("success").Inc()
	r.metrics.RegistrySensors.Set(float64(next.Len()))
	if prev.Len() != next.Len() {
		r.logger.Info("registry reloaded", "sensors", next.Len(), "previous", prev.Len())
	} else {
		r.logger.Debug("registry reloaded", "sensors", next.Len())
	}
	return nil
}
