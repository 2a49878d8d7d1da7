// Command simulate publishes a random reading to every registered sensor,
// drawn uniformly from one band of that sensor's threshold.
//
// Usage:
//
//	go run ./cmd/simulate -band critical_high [-config configs/sensors.yaml] [-rounds 1 -interval 1s]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	mqttadapter "github.com/couchcryptid/sensor-threshold-service/internal/adapter/mqtt"
	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
	"github.com/couchcryptid/sensor-threshold-service/internal/registry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	broker := flag.String("broker", sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"), "MQTT broker URL")
	configPath := flag.String("config", sharedcfg.EnvOrDefault("SENSOR_CONFIG_PATH", "configs/sensors.yaml"), "sensor table")
	bandName := flag.String("band", domain.BandAcceptable.String(), "acceptable, critical_low or critical_high")
	rounds := flag.Int("rounds", 1, "number of rounds to publish")
	interval := flag.Duration("interval", time.Second, "pause between rounds")
	flag.Parse()

	band, err := domain.ParseBand(*bandName)
	if err != nil {
		return err
	}
	if _, _, ok := (domain.Threshold{}).Range(band); !ok {
		return fmt.Errorf("band %s has no configured range", band)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.NewFileSource(*configPath).Load(ctx)
	if err != nil {
		return err
	}

	logger := sharedobs.NewLogger("info", "text")
	client := mqttadapter.NewClient(mqttadapter.ClientConfig{
		Broker:   *broker,
		ClientID: "sensor-simulate",
	}, logger, observability.NewMetricsForTesting())
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect(250 * time.Millisecond)

	for round := 0; round < *rounds; round++ {
		if round > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*interval):
			}
		}
		for _, entry := range reg.Entries() {
			lo, hi, _ := entry.Threshold.Range(band)
			value := lo + rand.Float64()*(hi-lo) //nolint:gosec // simulated readings
			payload := strconv.FormatFloat(value, 'f', -1, 64)
			if err := client.Publish(ctx, entry.Topic, 0, false, []byte(payload)); err != nil {
				return err
			}
		}
		logger.Info("published round", "round", round+1, "band", band, "sensors", reg.Len())
	}
	return nil
}
