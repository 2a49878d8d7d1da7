// Package mqtt connects the monitor to an MQTT broker: it feeds subscribed
// readings to the ingestor and publishes classification status back.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
)

// ErrInvalidQoS is returned for a quality-of-service level outside 0..2.
var ErrInvalidQoS = errors.New("qos must be 0, 1 or 2")

// MessageHandler receives one message from a subscription.
type MessageHandler func(topic string, payload []byte)

// ClientConfig configures the broker connection.
type ClientConfig struct {
	Broker   string
	ClientID string
	// Timeout bounds every connect, publish and subscribe acknowledgement.
	Timeout time.Duration
	// ConnectRetry keeps retrying the initial connection in the background.
	// Long-running services want this; one-shot tools do not.
	ConnectRetry bool
}

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// Client wraps a paho client with context-aware calls and remembers
// subscriptions so they are restored after every reconnect.
type Client struct {
	client  paho.Client
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient creates a client for cfg.Broker. Call Connect before use.
func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := newClient(nil, cfg.Timeout, logger, metrics)

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(cfg.ConnectRetry).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	c.client = paho.NewClient(opts)
	return c
}

func newClient(pc paho.Client, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		client:  pc,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[string]subscription),
	}
}

// Connect opens the broker connection.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.wait(ctx, c.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgement
// that qos requires.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	if qos > 2 {
		return ErrInvalidQoS
	}
	if err := c.wait(ctx, c.client.Publish(topic, qos, retain, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for filter. The subscription is sent now when
// connected and again after every reconnect.
func (c *Client) Subscribe(ctx context.Context, filter string, qos byte, handler MessageHandler) error {
	if qos > 2 {
		return ErrInvalidQoS
	}
	sub := subscription{
		qos: qos,
		handler: func(_ paho.Client, m paho.Message) {
			handler(m.Topic(), m.Payload())
		},
	}

	c.mu.Lock()
	c.subs[filter] = sub
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		c.logger.Info("mqtt subscription deferred until connected", "filter", filter)
		return nil
	}
	if err := c.wait(ctx, c.client.Subscribe(filter, qos, sub.handler)); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", filter, err)
	}
	c.logger.Info("mqtt subscribed", "filter", filter, "qos", qos)
	return nil
}

// Disconnect closes the connection, giving in-flight work quiesce to finish.
func (c *Client) Disconnect(quiesce time.Duration) {
	c.client.Disconnect(uint(quiesce.Milliseconds())) //nolint:gosec // quiesce is a small positive duration
	c.metrics.MQTTConnected.Set(0)
}

// CheckReadiness reports whether the broker connection is up.
func (c *Client) CheckReadiness(_ context.Context) error {
	if !c.client.IsConnectionOpen() {
		return errors.New("mqtt broker not connected")
	}
	return nil
}

func (c *Client) onConnect(pc paho.Client) {
	c.metrics.MQTTConnected.Set(1)
	c.logger.Info("mqtt connected")

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for filter, sub := range c.subs {
		subs[filter] = sub
	}
	c.mu.Unlock()

	for filter, sub := range subs {
		token := pc.Subscribe(filter, sub.qos, sub.handler)
		if !token.WaitTimeout(c.timeout) {
			c.logger.Error("mqtt resubscribe timed out", "filter", filter)
			continue
		}
		if err := token.Error(); err != nil {
			c.logger.Error("mqtt resubscribe failed", "filter", filter, "error", err)
			continue
		}
		c.logger.Info("mqtt subscribed", "filter", filter, "qos", sub.qos)
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.metrics.MQTTConnected.Set(0)
	c.logger.Warn("mqtt connection lost, reconnecting", "error", err)
}

func (c *Client) wait(ctx context.Context, token paho.Token) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
