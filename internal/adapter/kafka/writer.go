package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sensor-threshold-service/internal/config"
	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces classification events to a Kafka topic.
// It implements pipeline.BatchSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	logger.Info("kafka sink configured", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Write publishes a single event.
func (w *Writer) Write(ctx context.Context, event domain.ClassificationEvent) error {
	return w.WriteBatch(ctx, []domain.ClassificationEvent{event})
}

// WriteBatch serializes and publishes events in a single WriteMessages call.
// Messages are keyed by sensor topic, so one sensor always maps to one
// partition and keeps its order.
func (w *Writer) WriteBatch(ctx context.Context, events []domain.ClassificationEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ClassificationEvent into a Kafka message.
func serializeToMessage(event domain.ClassificationEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize classification event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Topic),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "band", Value: []byte(event.Band.String())},
			{Key: "processed_at", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
