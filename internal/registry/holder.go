package registry

import (
	"sync/atomic"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

// Holder publishes the active Registry to concurrent readers. Swaps replace
// the whole registry; the published registry is never edited.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder freezes r and makes it the active registry.
func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	h.current.Store(r.Freeze())
	return h
}

// Current returns the active registry.
func (h *Holder) Current() *Registry { return h.current.Load() }

// Swap freezes next, installs it, and returns the previous registry.
func (h *Holder) Swap(next *Registry) *Registry {
	return h.current.Swap(next.Freeze())
}

// Entry looks up topic in the active registry.
func (h *Holder) Entry(topic string) (domain.SensorEntry, error) {
	return h.Current().Entry(topic)
}

// IsChannel reports whether topic is a channel in the active registry.
func (h *Holder) IsChannel(topic string) bool {
	return h.Current().IsChannel(topic)
}

// Entries lists the sensors of the active registry.
func (h *Holder) Entries() []domain.SensorEntry {
	return h.Current().Entries()
}
