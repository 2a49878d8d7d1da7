package domain

import "fmt"

// Band is the ordered classification outcome for a reading. The zero value is
// BandUnknown and never produced by Classify.
type Band int

const (
	BandUnknown Band = iota
	BandBelowCriticalLow
	BandCriticalLow
	BandAcceptable
	BandCriticalHigh
	BandAboveCriticalHigh
)

var bandNames = map[Band]string{
	BandUnknown:           "unknown",
	BandBelowCriticalLow:  "below_critical_low",
	BandCriticalLow:       "critical_low",
	BandAcceptable:        "acceptable",
	BandCriticalHigh:      "critical_high",
	BandAboveCriticalHigh: "above_critical_high",
}

// Bands lists the five classification bands from low to high.
var Bands = []Band{
	BandBelowCriticalLow,
	BandCriticalLow,
	BandAcceptable,
	BandCriticalHigh,
	BandAboveCriticalHigh,
}

func (b Band) String() string {
	if name, ok := bandNames[b]; ok {
		return name
	}
	return fmt.Sprintf("band(%d)", int(b))
}

// IsCritical reports whether the band lies outside the acceptable range.
func (b Band) IsCritical() bool {
	return b != BandAcceptable && b != BandUnknown
}

// ParseBand converts a band name back to its Band value.
func ParseBand(s string) (Band, error) {
	for b, name := range bandNames {
		if b != BandUnknown && name == s {
			return b, nil
		}
	}
	return BandUnknown, fmt.Errorf("unknown band %q", s)
}

// MarshalText encodes the band by name so JSON and headers stay readable.
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a band name.
func (b *Band) UnmarshalText(text []byte) error {
	parsed, err := ParseBand(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Classify maps a reading onto one of the five bands of t. The acceptable
// range is closed; each critical range is half-open toward it. The caller
// rejects NaN beforehand (see ParseReading).
func Classify(t Threshold, value float64) Band {
	switch {
	case value < t.MinCriticalLower:
		return BandBelowCriticalLow
	case value < t.AcceptMin:
		return BandCriticalLow
	case value <= t.AcceptMax:
		return BandAcceptable
	case value <= t.MaxCriticalUpper:
		return BandCriticalHigh
	default:
		return BandAboveCriticalHigh
	}
}
