package domain

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var o2Threshold = Threshold{
	Name:             "O2 Concentration",
	MinCriticalLower: 0,
	MinCriticalUpper: 18,
	AcceptMin:        21,
	AcceptMax:        23,
	MaxCriticalLower: 25,
	MaxCriticalUpper: 35,
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  Band
	}{
		{"far below", -5, BandBelowCriticalLow},
		{"at min critical lower", 0, BandCriticalLow},
		{"inside critical low", 10, BandCriticalLow},
		{"gap before accept", 19.5, BandCriticalLow},
		{"at accept min", 21, BandAcceptable},
		{"inside acceptable", 22, BandAcceptable},
		{"at accept max", 23, BandAcceptable},
		{"gap after accept", 24, BandCriticalHigh},
		{"inside critical high", 30, BandCriticalHigh},
		{"at max critical upper", 35, BandCriticalHigh},
		{"far above", 40, BandAboveCriticalHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(o2Threshold, tt.value))
		})
	}
}

func TestClassify_BoundaryExactness(t *testing.T) {
	eps := 1e-9
	assert.Equal(t, BandAcceptable, Classify(o2Threshold, o2Threshold.AcceptMin))
	assert.Equal(t, BandAcceptable, Classify(o2Threshold, o2Threshold.AcceptMax))
	assert.Equal(t, BandCriticalLow, Classify(o2Threshold, o2Threshold.AcceptMin-eps))
	assert.Equal(t, BandCriticalHigh, Classify(o2Threshold, o2Threshold.AcceptMax+eps))
	assert.Equal(t, BandBelowCriticalLow, Classify(o2Threshold, o2Threshold.MinCriticalLower-eps))
	assert.Equal(t, BandAboveCriticalHigh, Classify(o2Threshold, o2Threshold.MaxCriticalUpper+eps))
	assert.Equal(t, BandAboveCriticalHigh, Classify(o2Threshold, math.Nextafter(o2Threshold.MaxCriticalUpper, math.Inf(1))))
}

// bandPredicates restates the five band definitions independently of Classify.
func bandPredicates(th Threshold, v float64) []Band {
	var matched []Band
	if v < th.MinCriticalLower {
		matched = append(matched, BandBelowCriticalLow)
	}
	if th.MinCriticalLower <= v && v < th.AcceptMin {
		matched = append(matched, BandCriticalLow)
	}
	if th.AcceptMin <= v && v <= th.AcceptMax {
		matched = append(matched, BandAcceptable)
	}
	if th.AcceptMax < v && v <= th.MaxCriticalUpper {
		matched = append(matched, BandCriticalHigh)
	}
	if v > th.MaxCriticalUpper {
		matched = append(matched, BandAboveCriticalHigh)
	}
	return matched
}

func TestClassify_PartitionsRealLine(t *testing.T) {
	thresholds := []Threshold{
		o2Threshold,
		{Name: "Air Temperature", MinCriticalLower: 18, MinCriticalUpper: 18, AcceptMin: 25, AcceptMax: 32, MaxCriticalLower: 35, MaxCriticalUpper: 36},
		{Name: "CO Concentration", MinCriticalLower: 0, MinCriticalUpper: 0, AcceptMin: 0, AcceptMax: 5, MaxCriticalLower: 25, MaxCriticalUpper: 30},
		{Name: "Humidity", MinCriticalLower: 0, MinCriticalUpper: 0, AcceptMin: 40, AcceptMax: 95, MaxCriticalLower: 100, MaxCriticalUpper: 100},
		{Name: "Optical Density (PBR, l)", MinCriticalLower: 0, MinCriticalUpper: 0, AcceptMin: 0.1, AcceptMax: 0.9, MaxCriticalLower: 1, MaxCriticalUpper: 1},
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for _, th := range thresholds {
		require.NoError(t, th.Validate())

		// Every bound, its neighbours, and a spread of random values.
		var values []float64
		for _, b := range []float64{th.MinCriticalLower, th.MinCriticalUpper, th.AcceptMin, th.AcceptMax, th.MaxCriticalLower, th.MaxCriticalUpper} {
			values = append(values, b, math.Nextafter(b, math.Inf(-1)), math.Nextafter(b, math.Inf(1)))
		}
		span := th.MaxCriticalUpper - th.MinCriticalLower + 10
		for range 500 {
			values = append(values, th.MinCriticalLower-5+rng.Float64()*(span+5))
		}

		for _, v := range values {
			matched := bandPredicates(th, v)
			require.Len(t, matched, 1, "%s: value %v matched %v", th.Name, v, matched)
			assert.Equal(t, matched[0], Classify(th, v), "%s: value %v", th.Name, v)
		}
	}
}

func TestBand_Ordering(t *testing.T) {
	for i := 1; i < len(Bands); i++ {
		assert.Less(t, Bands[i-1], Bands[i])
	}
}

func TestBand_IsCritical(t *testing.T) {
	assert.False(t, BandAcceptable.IsCritical())
	assert.False(t, BandUnknown.IsCritical())
	assert.True(t, BandCriticalLow.IsCritical())
	assert.True(t, BandCriticalHigh.IsCritical())
	assert.True(t, BandBelowCriticalLow.IsCritical())
	assert.True(t, BandAboveCriticalHigh.IsCritical())
}

func TestParseBand(t *testing.T) {
	for _, b := range Bands {
		parsed, err := ParseBand(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, parsed)
	}

	_, err := ParseBand("unknown")
	require.Error(t, err)
	_, err = ParseBand("lukewarm")
	require.Error(t, err)
}

func TestBand_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Band Band `json:"band"`
	}{BandCriticalHigh})
	require.NoError(t, err)
	assert.JSONEq(t, `{"band":"critical_high"}`, string(data))

	var decoded struct {
		Band Band `json:"band"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"band":"below_critical_low"}`), &decoded))
	assert.Equal(t, BandBelowCriticalLow, decoded.Band)

	assert.Error(t, json.Unmarshal([]byte(`{"band":"nope"}`), &decoded))
}

func TestBand_StringOutOfRange(t *testing.T) {
	assert.Equal(t, "band(42)", Band(42).String())
}
