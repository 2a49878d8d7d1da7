package domain

import (
	"fmt"
	"math"
)

// Threshold holds the six boundary values for one sensor category.
type Threshold struct {
	Name             string  `json:"name" yaml:"name"`
	MinCriticalLower float64 `json:"min_critical_lower" yaml:"min_critical_lower"`
	MinCriticalUpper float64 `json:"min_critical_upper" yaml:"min_critical_upper"`
	AcceptMin        float64 `json:"accept_min" yaml:"accept_min"`
	AcceptMax        float64 `json:"accept_max" yaml:"accept_max"`
	MaxCriticalLower float64 `json:"max_critical_lower" yaml:"max_critical_lower"`
	MaxCriticalUpper float64 `json:"max_critical_upper" yaml:"max_critical_upper"`
}

// Validate checks that every bound is finite and that the bands are ordered
// low to high without overlap.
func (t Threshold) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidThreshold)
	}

	bounds := []struct {
		name  string
		value float64
	}{
		{"min_critical_lower", t.MinCriticalLower},
		{"min_critical_upper", t.MinCriticalUpper},
		{"accept_min", t.AcceptMin},
		{"accept_max", t.AcceptMax},
		{"max_critical_lower", t.MaxCriticalLower},
		{"max_critical_upper", t.MaxCriticalUpper},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return fmt.Errorf("%w: %s: %s must be finite", ErrInvalidThreshold, t.Name, b.name)
		}
	}

	// Consecutive bounds must be non-decreasing.
	for i := 1; i < len(bounds); i++ {
		if bounds[i-1].value > bounds[i].value {
			return fmt.Errorf("%w: %s: %s (%g) > %s (%g)", ErrInvalidThreshold, t.Name,
				bounds[i-1].name, bounds[i-1].value, bounds[i].name, bounds[i].value)
		}
	}
	return nil
}

// Range returns the configured interval for a band: the critical-low band
// [minCriticalLower, minCriticalUpper], the acceptable band [acceptMin,
// acceptMax], or the critical-high band [maxCriticalLower, maxCriticalUpper].
// The outer bands are unbounded and report ok=false.
//
// The configured critical intervals are narrower than what Classify assigns to
// the critical bands, which also cover the gaps up to the acceptable range.
func (t Threshold) Range(b Band) (lo, hi float64, ok bool) {
	switch b {
	case BandCriticalLow:
		return t.MinCriticalLower, t.MinCriticalUpper, true
	case BandAcceptable:
		return t.AcceptMin, t.AcceptMax, true
	case BandCriticalHigh:
		return t.MaxCriticalLower, t.MaxCriticalUpper, true
	default:
		return 0, 0, false
	}
}
