package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// valueEnvelope is the JSON form some boards publish instead of a bare number.
type valueEnvelope struct {
	Value *json.Number `json:"value"`
}

// ParseReading extracts a finite float64 from a raw sensor payload. Accepted
// forms are a bare decimal number ("22.4", surrounding whitespace ignored), a
// quoted number ("\"22.4\"") and an object with a numeric "value" field.
// Anything after the first value is an error.
func ParseReading(raw []byte) (float64, error) {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return 0, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	switch s[0] {
	case '{':
		var env valueEnvelope
		if err := json.Unmarshal(s, &env); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if env.Value == nil {
			return 0, fmt.Errorf("%w: missing value field", ErrInvalidPayload)
		}
		return parseFinite(env.Value.String())
	case '"':
		var text string
		if err := json.Unmarshal(s, &text); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return parseFinite(string(bytes.TrimSpace([]byte(text))))
	default:
		return parseFinite(string(s))
	}
}

func parseFinite(s string) (float64, error) {
	// ParseFloat also takes hex floats and digit separators; boards send neither.
	if strings.ContainsAny(s, "xX_") {
		return 0, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidPayload, s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidPayload, s)
	}
	return v, nil
}
