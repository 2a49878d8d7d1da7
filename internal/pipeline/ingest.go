package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
)

// SensorLookup resolves a topic to its sensor entry.
type SensorLookup interface {
	Entry(topic string) (domain.SensorEntry, error)
}

// Emitter accepts classification events without blocking the caller.
type Emitter interface {
	Emit(event domain.ClassificationEvent)
}

// Ingestor turns raw readings into classification events.
type Ingestor struct {
	sensors SensorLookup
	emitter Emitter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIngestor creates an Ingestor that resolves topics through sensors and
// hands every event to emitter.
func NewIngestor(sensors SensorLookup, emitter Emitter, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		sensors: sensors,
		emitter: emitter,
		logger:  logger,
		metrics: metrics,
	}
}

// Ingest parses raw as a numeric reading for topic, classifies it and emits
// the resulting event. Errors wrap domain.ErrInvalidPayload or
// domain.ErrUnknownTopic; none of them affect later readings.
func (i *Ingestor) Ingest(ctx context.Context, topic string, raw []byte) (domain.ClassificationEvent, error) {
	i.metrics.ReadingsReceived.Inc()

	value, err := domain.ParseReading(raw)
	if err != nil {
		return domain.ClassificationEvent{}, i.reject(topic, &domain.TopicError{Topic: topic, Err: err})
	}
	return i.classify(ctx, topic, value)
}

// IngestValue classifies an already-decoded reading.
func (i *Ingestor) IngestValue(ctx context.Context, topic string, value float64) (domain.ClassificationEvent, error) {
	i.metrics.ReadingsReceived.Inc()

	if math.IsNaN(value) || math.IsInf(value, 0) {
		err := fmt.Errorf("%w: non-finite value %v", domain.ErrInvalidPayload, value)
		return domain.ClassificationEvent{}, i.reject(topic, &domain.TopicError{Topic: topic, Err: err})
	}
	return i.classify(ctx, topic, value)
}

func (i *Ingestor) classify(_ context.Context, topic string, value float64) (domain.ClassificationEvent, error) {
	entry, err := i.sensors.Entry(topic)
	if err != nil {
		return domain.ClassificationEvent{}, i.reject(topic, err)
	}

	event := domain.NewClassificationEvent(entry, value)
	i.metrics.ReadingsClassified.WithLabelValues(event.Band.String()).Inc()
	if event.Critical {
		i.logger.Info("critical reading",
			"topic", topic,
			"type", event.TypeName,
			"value", value,
			"band", event.Band,
		)
	} else {
		i.logger.Debug("reading classified", "topic", topic, "value", value, "band", event.Band)
	}

	i.emitter.Emit(event)
	return event, nil
}

func (i *Ingestor) reject(topic string, err error) error {
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		reason = "invalid_payload"
	case errors.Is(err, domain.ErrUnknownTopic):
		reason = "unknown_topic"
	}
	i.metrics.IngestErrors.WithLabelValues(reason).Inc()
	i.logger.Warn("reading rejected", "topic", topic, "reason", reason, "error", err)
	return err
}
