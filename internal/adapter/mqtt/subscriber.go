package mqtt

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

// Ingester classifies one raw reading.
type Ingester interface {
	Ingest(ctx context.Context, topic string, raw []byte) (domain.ClassificationEvent, error)
}

// ChannelChecker tells sensor topics apart from chat-style channels.
type ChannelChecker interface {
	IsChannel(topic string) bool
}

// Subscriber feeds every message on a topic filter to the ingestor. Status
// topics written by StatusSink and registered channels are skipped, so a
// wildcard filter never classifies the monitor's own output.
type Subscriber struct {
	client       *Client
	ingester     Ingester
	channels     ChannelChecker
	filter       string
	qos          byte
	statusSuffix string
	logger       *slog.Logger

	ctx context.Context
}

// NewSubscriber creates a Subscriber for filter.
func NewSubscriber(client *Client, ingester Ingester, channels ChannelChecker, filter string, qos byte, statusSuffix string, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client:       client,
		ingester:     ingester,
		channels:     channels,
		filter:       filter,
		qos:          qos,
		statusSuffix: statusSuffix,
		logger:       logger,
		ctx:          context.Background(),
	}
}

// Start subscribes. Messages are handled until the client disconnects;
// ctx is passed on to the ingestor.
func (s *Subscriber) Start(ctx context.Context) error {
	s.ctx = context.WithoutCancel(ctx)
	return s.client.Subscribe(ctx, s.filter, s.qos, s.handle)
}

func (s *Subscriber) handle(topic string, payload []byte) {
	if s.statusSuffix != "" && strings.HasSuffix(topic, s.statusSuffix) {
		return
	}
	if s.channels.IsChannel(topic) {
		s.logger.Debug("channel message ignored", "topic", topic, "bytes", len(payload))
		return
	}
	// Rejections are logged and counted by the ingestor.
	_, _ = s.ingester.Ingest(s.ctx, topic, payload)
}
