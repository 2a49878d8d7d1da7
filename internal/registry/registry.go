// Package registry maps sensor topics to their threshold definitions.
//
// A Registry is built once from a Source and frozen; after that it is only
// read, so lookups need no locking. Hot reload builds a fresh Registry and
// swaps it into a Holder atomically.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

// ErrRegistryFrozen is returned by Register once the registry has been frozen.
var ErrRegistryFrozen = errors.New("registry is frozen")

// Registry is a topic-keyed table of sensor thresholds plus the set of
// non-sensor channels (e.g. chat topics) that share the broker.
type Registry struct {
	sensors  map[string]domain.SensorEntry
	channels map[string]string
	frozen   bool
}

// New returns an empty, mutable registry.
func New() *Registry {
	return &Registry{
		sensors:  make(map[string]domain.SensorEntry),
		channels: make(map[string]string),
	}
}

// Register adds a sensor topic. It fails without modifying the registry when
// the topic is empty or already taken, or the threshold is invalid.
func (r *Registry) Register(topic string, threshold domain.Threshold) error {
	if err := r.checkTopic(topic); err != nil {
		return err
	}
	if err := threshold.Validate(); err != nil {
		return &domain.TopicError{Topic: topic, Err: err}
	}
	r.sensors[topic] = domain.SensorEntry{Topic: topic, Threshold: threshold}
	return nil
}

// RegisterChannel records a topic that carries non-sensor traffic. Channels
// are recognised but never classified.
func (r *Registry) RegisterChannel(topic, description string) error {
	if err := r.checkTopic(topic); err != nil {
		return err
	}
	r.channels[topic] = description
	return nil
}

func (r *Registry) checkTopic(topic string) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if topic == "" {
		return errors.New("topic is required")
	}
	_, isSensor := r.sensors[topic]
	_, isChannel := r.channels[topic]
	if isSensor || isChannel {
		return &domain.TopicError{Topic: topic, Err: domain.ErrDuplicateTopic}
	}
	return nil
}

// Freeze makes the registry read-only. It returns r for chaining.
func (r *Registry) Freeze() *Registry {
	r.frozen = true
	return r
}

// Lookup returns the threshold registered for topic.
func (r *Registry) Lookup(topic string) (domain.Threshold, error) {
	entry, err := r.Entry(topic)
	if err != nil {
		return domain.Threshold{}, err
	}
	return entry.Threshold, nil
}

// Entry returns the full sensor entry for topic.
func (r *Registry) Entry(topic string) (domain.SensorEntry, error) {
	entry, ok := r.sensors[topic]
	if !ok {
		return domain.SensorEntry{}, &domain.TopicError{Topic: topic, Err: domain.ErrUnknownTopic}
	}
	return entry, nil
}

// IsChannel reports whether topic is a registered non-sensor channel.
func (r *Registry) IsChannel(topic string) bool {
	_, ok := r.channels[topic]
	return ok
}

// Len returns the number of sensor topics.
func (r *Registry) Len() int { return len(r.sensors) }

// Entries returns all sensor entries sorted by topic.
func (r *Registry) Entries() []domain.SensorEntry {
	out := make([]domain.SensorEntry, 0, len(r.sensors))
	for _, e := range r.sensors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Channels returns the registered channel topics sorted by name.
func (r *Registry) Channels() []string {
	out := make([]string, 0, len(r.channels))
	for topic := range r.channels {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Types returns the distinct threshold definitions in use, sorted by name.
func (r *Registry) Types() []domain.Threshold {
	seen := make(map[string]domain.Threshold)
	for _, e := range r.sensors {
		seen[e.Threshold.Name] = e.Threshold
	}
	out := make([]domain.Threshold, 0, len(seen))
	for _, th := range seen {
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// String summarises the registry for logs.
func (r *Registry) String() string {
	return fmt.Sprintf("registry(sensors=%d, channels=%d)", len(r.sensors), len(r.channels))
}
