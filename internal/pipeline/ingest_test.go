package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
	"github.com/couchcryptid/sensor-threshold-service/internal/pipeline"
	"github.com/couchcryptid/sensor-threshold-service/internal/registry"
)

// --- helpers ---

var o2 = domain.Threshold{
	Name:             "O2 Concentration",
	MinCriticalLower: 0,
	MinCriticalUpper: 18,
	AcceptMin:        21,
	AcceptMax:        23,
	MaxCriticalLower: 25,
	MaxCriticalUpper: 35,
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.ClassificationEvent
}

func (r *recordingEmitter) Emit(e domain.ClassificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) Events() []domain.ClassificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ClassificationEvent(nil), r.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newO2Registry(t *testing.T) *registry.Holder {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.Register("board1/o2", o2))
	return registry.NewHolder(r)
}

// --- tests ---

func TestIngestor_O2Example(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	emitter := &recordingEmitter{}
	metrics := observability.NewMetricsForTesting()
	ing := pipeline.NewIngestor(newO2Registry(t), emitter, discardLogger(), metrics)

	tests := []struct {
		raw  string
		want domain.Band
	}{
		{"22.0", domain.BandAcceptable},
		{"10.0", domain.BandCriticalLow},
		{"40.0", domain.BandAboveCriticalHigh},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			event, err := ing.Ingest(context.Background(), "board1/o2", []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Band)
			assert.Equal(t, "board1/o2", event.Topic)
			assert.Equal(t, "O2 Concentration", event.TypeName)
			assert.Equal(t, fixed, event.Timestamp)
			assert.NotEmpty(t, event.ID)
		})
	}

	events := emitter.Events()
	require.Len(t, events, 3)
	assert.Equal(t, domain.BandAcceptable, events[0].Band)
	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.ReadingsReceived), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ReadingsClassified.WithLabelValues("critical_low")), 0)
}

func TestIngestor_Rejections(t *testing.T) {
	emitter := &recordingEmitter{}
	metrics := observability.NewMetricsForTesting()
	ing := pipeline.NewIngestor(newO2Registry(t), emitter, discardLogger(), metrics)

	_, err := ing.Ingest(context.Background(), "board9/o2", []byte("22.0"))
	require.ErrorIs(t, err, domain.ErrUnknownTopic)

	_, err = ing.Ingest(context.Background(), "board1/o2", []byte("not-a-number"))
	require.ErrorIs(t, err, domain.ErrInvalidPayload)

	var topicErr *domain.TopicError
	require.ErrorAs(t, err, &topicErr)
	assert.Equal(t, "board1/o2", topicErr.Topic)

	_, err = ing.IngestValue(context.Background(), "board1/o2", math.NaN())
	require.ErrorIs(t, err, domain.ErrInvalidPayload)

	assert.Empty(t, emitter.Events(), "rejected readings must not be emitted")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.IngestErrors.WithLabelValues("unknown_topic")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.IngestErrors.WithLabelValues("invalid_payload")), 0)

	// A bad reading does not affect the next one.
	event, err := ing.Ingest(context.Background(), "board1/o2", []byte(" 21 \n"))
	require.NoError(t, err)
	assert.Equal(t, domain.BandAcceptable, event.Band)
}

func TestIngestor_IngestValue(t *testing.T) {
	emitter := &recordingEmitter{}
	ing := pipeline.NewIngestor(newO2Registry(t), emitter, discardLogger(), observability.NewMetricsForTesting())

	event, err := ing.IngestValue(context.Background(), "board1/o2", 30)
	require.NoError(t, err)
	assert.Equal(t, domain.BandCriticalHigh, event.Band)
	assert.True(t, event.Critical)
	assert.Len(t, emitter.Events(), 1)
}

func TestIngestor_FollowsRegistrySwap(t *testing.T) {
	holder := newO2Registry(t)
	ing := pipeline.NewIngestor(holder, &recordingEmitter{}, discardLogger(), observability.NewMetricsForTesting())

	event, err := ing.IngestValue(context.Background(), "board1/o2", 24)
	require.NoError(t, err)
	assert.Equal(t, domain.BandCriticalHigh, event.Band)

	wider := o2
	wider.AcceptMax = 24.5
	next := registry.New()
	require.NoError(t, next.Register("board1/o2", wider))
	holder.Swap(next)

	event, err = ing.IngestValue(context.Background(), "board1/o2", 24)
	require.NoError(t, err)
	assert.Equal(t, domain.BandAcceptable, event.Band)
}
