package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Registry sources.
const (
	RegistrySourceFile     = "file"
	RegistrySourcePostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	MQTTBroker         string
	MQTTClientID       string
	MQTTSubscribeTopic string
	MQTTQoS            byte
	MQTTStatusSuffix   string
	MQTTStatusRetain   bool
	MQTTPublishTimeout time.Duration

	SensorConfigPath       string
	RegistrySource         string
	RegistryReloadInterval time.Duration

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Postgres and Redis sinks are enabled by setting their address.
	PostgresURL   string
	PostgresTable string
	RedisAddr     string
	RedisTTL      time.Duration

	SinkWorkers    int
	SinkQueueSize  int
	SinkTimeout    time.Duration
	SinkMaxRetries int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MQTTBroker:         sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:       sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "sensor-monitor"),
		MQTTSubscribeTopic: sharedcfg.EnvOrDefault("MQTT_SUBSCRIBE_TOPIC", "#"),
		MQTTStatusSuffix:   sharedcfg.EnvOrDefault("MQTT_STATUS_SUFFIX", "/status"),

		SensorConfigPath: sharedcfg.EnvOrDefault("SENSOR_CONFIG_PATH", "configs/sensors.yaml"),
		RegistrySource:   sharedcfg.EnvOrDefault("REGISTRY_SOURCE", RegistrySourceFile),

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "sensor-classifications"),

		PostgresURL:   sharedcfg.EnvOrDefault("POSTGRES_URL", ""),
		PostgresTable: sharedcfg.EnvOrDefault("POSTGRES_TABLE", "classification_events"),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", ""),

		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.MQTTQoS, err = ParseQoS(sharedcfg.EnvOrDefault("MQTT_QOS", "0")); err != nil {
		return nil, fmt.Errorf("invalid MQTT_QOS: %w", err)
	}
	if cfg.MQTTStatusRetain, err = parseBool("MQTT_STATUS_RETAIN", "false"); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", "false"); err != nil {
		return nil, err
	}
	if cfg.MQTTPublishTimeout, err = parsePositiveDuration("MQTT_PUBLISH_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.RedisTTL, err = parsePositiveDuration("REDIS_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.SinkTimeout, err = parsePositiveDuration("SINK_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.RegistryReloadInterval, err = parseDuration("REGISTRY_RELOAD_INTERVAL", "0s"); err != nil {
		return nil, err
	}
	if cfg.SinkWorkers, err = parseInt("SINK_WORKERS", "4", 1, 256); err != nil {
		return nil, err
	}
	if cfg.SinkQueueSize, err = parseInt("SINK_QUEUE_SIZE", "1024", 1, 1<<20); err != nil {
		return nil, err
	}
	if cfg.SinkMaxRetries, err = parseInt("SINK_MAX_RETRIES", "3", 0, 100); err != nil {
		return nil, err
	}

	if cfg.MQTTBroker == "" {
		return nil, errors.New("MQTT_BROKER is required")
	}
	switch cfg.RegistrySource {
	case RegistrySourceFile:
		if cfg.SensorConfigPath == "" {
			return nil, errors.New("SENSOR_CONFIG_PATH is required")
		}
	case RegistrySourcePostgres:
		if cfg.PostgresURL == "" {
			return nil, errors.New("REGISTRY_SOURCE=postgres requires POSTGRES_URL")
		}
	default:
		return nil, fmt.Errorf("invalid REGISTRY_SOURCE %q: want file or postgres", cfg.RegistrySource)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

// ParseQoS parses an MQTT quality-of-service level. Only 0, 1 and 2 are valid.
func ParseQoS(s string) (byte, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 2 {
		return 0, fmt.Errorf("qos %q must be 0, 1 or 2", s)
	}
	return byte(n), nil
}

// ParseBool accepts the truthy words true, 1, t, y, yes and the falsy words
// false, 0, f, n, no, case-insensitively.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t", "y", "yes":
		return true, nil
	case "false", "0", "f", "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("cannot convert %q to bool", s)
}

func parseBool(key, def string) (bool, error) {
	v, err := ParseBool(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key, def string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}
