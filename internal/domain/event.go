package domain

import (
	"time"

	"github.com/google/uuid"
)

// SensorEntry binds a routing topic to the threshold of its sensor category.
// Several entries usually share one Threshold.
type SensorEntry struct {
	Topic     string    `json:"topic"`
	Threshold Threshold `json:"threshold"`
}

// ClassificationEvent is produced once per ingested reading and handed to the
// sinks. The core keeps no copy.
type ClassificationEvent struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	TypeName  string    `json:"type_name"`
	Value     float64   `json:"value"`
	Band      Band      `json:"band"`
	Critical  bool      `json:"critical"`
	Timestamp time.Time `json:"timestamp"`
}

// NewClassificationEvent classifies value against the entry's threshold and
// stamps the result with a fresh ID and the current UTC time.
func NewClassificationEvent(entry SensorEntry, value float64) ClassificationEvent {
	band := Classify(entry.Threshold, value)
	return ClassificationEvent{
		ID:        uuid.NewString(),
		Topic:     entry.Topic,
		TypeName:  entry.Threshold.Name,
		Value:     value,
		Band:      band,
		Critical:  band.IsCritical(),
		Timestamp: clock.Now().UTC(),
	}
}
