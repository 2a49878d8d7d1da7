package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
)

// Sink delivers classification events to one downstream system.
type Sink interface {
	Name() string
	Write(ctx context.Context, event domain.ClassificationEvent) error
}

// BatchSink is a Sink that can write several events in one call. Events in a
// batch always come from one queue, in queue order.
type BatchSink interface {
	Sink
	WriteBatch(ctx context.Context, events []domain.ClassificationEvent) error
}

// DispatcherConfig sizes the per-sink worker shards and the retry policy.
type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	MaxRetries int
	// BatchSize caps the events handed to one WriteBatch call.
	BatchSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	// Start at 200ms, double each retry, cap at 5s.
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

type sinkLane struct {
	sink   Sink
	shards []chan domain.ClassificationEvent
}

// Dispatcher fans classification events out to sinks. Every sink has its own
// set of bounded queues, each served by one worker; events for one topic
// always land on the same queue so they reach a sink in ingestion order.
type Dispatcher struct {
	cfg     DispatcherConfig
	lanes   []*sinkLane
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	closed bool

	workCtx context.Context
	abandon context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher starts the workers for every sink.
func NewDispatcher(cfg DispatcherConfig, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	workCtx, abandon := context.WithCancel(context.Background())

	d := &Dispatcher{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		workCtx: workCtx,
		abandon: abandon,
	}

	for _, s := range sinks {
		lane := &sinkLane{sink: s, shards: make([]chan domain.ClassificationEvent, cfg.Workers)}
		for i := range lane.shards {
			q := make(chan domain.ClassificationEvent, cfg.QueueSize)
			lane.shards[i] = q
			d.wg.Add(1)
			go d.work(s, q)
		}
		d.lanes = append(d.lanes, lane)
	}

	logger.Info("dispatcher started",
		"sinks", len(sinks),
		"workers_per_sink", cfg.Workers,
		"queue_size", cfg.QueueSize,
		"batch_size", cfg.BatchSize,
	)
	return d
}

// Emit queues event for every sink. It never blocks: when a sink's queue is
// full, or the dispatcher is closed, the event is dropped for that sink.
func (d *Dispatcher) Emit(event domain.ClassificationEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	shard := shardFor(event.Topic, d.cfg.Workers)
	for _, lane := range d.lanes {
		if d.closed {
			d.drop(lane.sink.Name(), event, "dispatcher closed")
			continue
		}
		select {
		case lane.shards[shard] <- event:
		default:
			d.drop(lane.sink.Name(), event, "queue full")
		}
	}
}

// Close stops accepting events and waits for queued events to drain. When
// ctx expires first, in-flight writes are cancelled and whatever is still
// queued is discarded and counted as dropped.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, lane := range d.lanes {
		for _, q := range lane.shards {
			close(q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.abandon()
		d.logger.Info("dispatcher drained")
		return nil
	case <-ctx.Done():
		d.abandon()
		<-done
		d.logger.Warn("dispatcher drain deadline exceeded, remaining events abandoned")
		return fmt.Errorf("drain sinks: %w", ctx.Err())
	}
}

// CheckReadiness reports ready until the dispatcher is closed.
func (d *Dispatcher) CheckReadiness(_ context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.New("dispatcher is closed")
	}
	return nil
}

func (d *Dispatcher) work(s Sink, q <-chan domain.ClassificationEvent) {
	defer d.wg.Done()

	limit := 1
	if _, ok := s.(BatchSink); ok {
		limit = d.cfg.BatchSize
	}
	batch := make([]domain.ClassificationEvent, 0, limit)

	for event := range q {
		batch = fillBatch(q, append(batch[:0], event), limit)
		if d.workCtx.Err() != nil {
			for _, e := range batch {
				d.drop(s.Name(), e, "abandoned at shutdown")
			}
			continue
		}
		d.deliver(d.workCtx, s, batch)
	}
}

// fillBatch appends already-queued events to batch without waiting.
func fillBatch(q <-chan domain.ClassificationEvent, batch []domain.ClassificationEvent, limit int) []domain.ClassificationEvent {
	for len(batch) < limit {
		select {
		case event, ok := <-q:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

// deliver writes a batch, retrying the whole batch with exponential backoff.
func (d *Dispatcher) deliver(ctx context.Context, s Sink, batch []domain.ClassificationEvent) {
	name := s.Name()
	backoff := d.cfg.InitialBackoff
	n := float64(len(batch))

	for attempt := 0; ; attempt++ {
		err := d.writeOnce(ctx, s, batch)
		if err == nil {
			d.metrics.EventsDelivered.WithLabelValues(name).Add(n)
			return
		}

		err = fmt.Errorf("%w: %s: %w", domain.ErrSinkUnavailable, name, err)
		if attempt >= d.cfg.MaxRetries || ctx.Err() != nil {
			d.metrics.SinkFailures.WithLabelValues(name).Add(n)
			d.logger.Error("sink write failed, dropping events",
				"sink", name,
				"topic", batch[0].Topic,
				"events", len(batch),
				"attempts", attempt+1,
				"error", err,
			)
			return
		}

		d.logger.Warn("sink write failed, retrying",
			"sink", name,
			"topic", batch[0].Topic,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			d.metrics.SinkFailures.WithLabelValues(name).Add(n)
			return
		}
		backoff = sharedretry.NextBackoff(backoff, d.cfg.MaxBackoff)
	}
}

func (d *Dispatcher) writeOnce(ctx context.Context, s Sink, batch []domain.ClassificationEvent) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var err error
	if bs, ok := s.(BatchSink); ok && len(batch) > 1 {
		err = bs.WriteBatch(ctx, batch)
	} else {
		err = s.Write(ctx, batch[0])
	}
	d.metrics.SinkWriteDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	return err
}

func (d *Dispatcher) drop(sink string, event domain.ClassificationEvent, reason string) {
	d.metrics.EventsDropped.WithLabelValues(sink).Inc()
	d.logger.Warn("event dropped",
		"sink", sink,
		"topic", event.Topic,
		"event_id", event.ID,
		"reason", reason,
	)
}

func shardFor(topic string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return int(h.Sum32() % uint32(n)) //nolint:gosec // n is a small positive worker count
}
