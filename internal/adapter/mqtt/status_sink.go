package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
}

// StatusSink publishes each classification event as JSON to the sensor's
// status topic, <topic><suffix>.
type StatusSink struct {
	publisher Publisher
	suffix    string
	qos       byte
	retain    bool
}

// NewStatusSink creates a StatusSink.
func NewStatusSink(publisher Publisher, suffix string, qos byte, retain bool) *StatusSink {
	return &StatusSink{publisher: publisher, suffix: suffix, qos: qos, retain: retain}
}

func (s *StatusSink) Name() string { return "mqtt" }

func (s *StatusSink) Write(ctx context.Context, event domain.ClassificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize classification event: %w", err)
	}
	return s.publisher.Publish(ctx, StatusTopic(event.Topic, s.suffix), s.qos, s.retain, payload)
}

// StatusTopic returns the status topic for a sensor topic.
func StatusTopic(topic, suffix string) string {
	return topic + suffix
}
