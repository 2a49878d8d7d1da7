// Command monitor subscribes to sensor readings over MQTT, classifies each one
// against its threshold and delivers the result to the configured sinks.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/sensor-threshold-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/sensor-threshold-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/sensor-threshold-service/internal/adapter/mqtt"
	"github.com/couchcryptid/sensor-threshold-service/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/sensor-threshold-service/internal/adapter/redis"
	"github.com/couchcryptid/sensor-threshold-service/internal/config"
	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
	"github.com/couchcryptid/sensor-threshold-service/internal/pipeline"
	"github.com/couchcryptid/sensor-threshold-service/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("monitor failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}()

	// Postgres backs both the record sink and the optional registry source.
	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		if db, err = postgres.Open(ctx, cfg.PostgresURL); err != nil {
			return err
		}
		closers = append(closers, db)
		if err := postgres.Migrate(db, logger); err != nil {
			return err
		}
	}

	var source registry.Source = registry.NewFileSource(cfg.SensorConfigPath)
	if cfg.RegistrySource == config.RegistrySourcePostgres {
		source = postgres.NewThresholdStore(db)
	}
	initial, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load sensor registry from %s: %w", source.Name(), err)
	}
	holder := registry.NewHolder(initial)
	metrics.RegistrySensors.Set(float64(initial.Len()))
	logger.Info("sensor registry loaded", "source", source.Name(), "sensors", initial.Len())

	client := mqttadapter.NewClient(mqttadapter.ClientConfig{
		Broker:       cfg.MQTTBroker,
		ClientID:     cfg.MQTTClientID,
		Timeout:      cfg.MQTTPublishTimeout,
		ConnectRetry: true,
	}, logger, metrics)

	sinks, sinkClosers, err := buildSinks(ctx, cfg, client, db, logger)
	closers = append(closers, sinkClosers...)
	if err != nil {
		return err
	}

	dispatcher := pipeline.NewDispatcher(pipeline.DispatcherConfig{
		Workers:    cfg.SinkWorkers,
		QueueSize:  cfg.SinkQueueSize,
		Timeout:    cfg.SinkTimeout,
		MaxRetries: cfg.SinkMaxRetries,
		BatchSize:  cfg.BatchSize,
	}, sinks, logger, metrics)
	ingestor := pipeline.NewIngestor(holder, dispatcher, logger, metrics)

	subscriber := mqttadapter.NewSubscriber(client, ingestor, holder,
		cfg.MQTTSubscribeTopic, cfg.MQTTQoS, cfg.MQTTStatusSuffix, logger)
	if err := subscriber.Start(ctx); err != nil {
		return err
	}
	// With connect retry enabled the first attempt only fails on a
	// cancelled context; later attempts continue in the background.
	if err := client.Connect(ctx); err != nil {
		logger.Warn("mqtt not connected yet, retrying in background", "error", err)
	}

	ready := observability.AllReady().
		Add("mqtt", client).
		Add("dispatcher", dispatcher)
	api := httpadapter.NewAPI(client, ingestor, holder, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, api, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	reloader := registry.NewReloader(holder, source, cfg.RegistryReloadInterval, logger, metrics)
	go reloader.Run(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// Drain queued events before the status sink loses its connection.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown error", "error", err)
	}
	client.Disconnect(250 * time.Millisecond)
	return nil
}

// buildSinks returns the MQTT status sink plus every optional sink whose
// settings are present, and the resources to close on shutdown.
func buildSinks(ctx context.Context, cfg *config.Config, client *mqttadapter.Client, db *sql.DB, logger *slog.Logger) ([]pipeline.Sink, []io.Closer, error) {
	sinks := []pipeline.Sink{
		mqttadapter.NewStatusSink(client, cfg.MQTTStatusSuffix, cfg.MQTTQoS, cfg.MQTTStatusRetain),
	}
	var closers []io.Closer

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		closers = append(closers, writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	if db != nil {
		records, err := postgres.NewRecordSink(db, cfg.PostgresTable)
		if err != nil {
			return nil, closers, err
		}
		if err := records.EnsureTable(ctx); err != nil {
			return nil, closers, err
		}
		sinks = append(sinks, records)
		logger.Info("postgres sink enabled", "table", cfg.PostgresTable)
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisadapter.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, closers, err
		}
		sinks = append(sinks, redisadapter.NewStatusCache(rdb, cfg.RedisTTL))
		closers = append(closers, rdb)
		logger.Info("redis sink enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}

	return sinks, closers, nil
}
