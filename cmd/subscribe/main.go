// Command subscribe prints every message published on a topic filter until
// interrupted.
//
// Usage:
//
//	go run ./cmd/subscribe [-broker tcp://localhost:1883] [-qos 0] [filter]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	mqttadapter "github.com/couchcryptid/sensor-threshold-service/internal/adapter/mqtt"
	"github.com/couchcryptid/sensor-threshold-service/internal/config"
	"github.com/couchcryptid/sensor-threshold-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	broker := flag.String("broker", sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"), "MQTT broker URL")
	clientID := flag.String("client-id", "sensor-subscribe", "MQTT client ID")
	qosFlag := flag.String("qos", "0", "subscription quality of service (0, 1 or 2)")
	flag.Parse()

	filter := "#"
	if flag.NArg() > 0 {
		filter = flag.Arg(0)
	}
	qos, err := config.ParseQoS(*qosFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := sharedobs.NewLogger("info", "text")
	client := mqttadapter.NewClient(mqttadapter.ClientConfig{
		Broker:   *broker,
		ClientID: *clientID,
	}, logger, observability.NewMetricsForTesting())

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect(250 * time.Millisecond)

	err = client.Subscribe(ctx, filter, qos, func(topic string, payload []byte) {
		fmt.Printf("%s %s: %s\n", time.Now().Format(time.RFC3339), topic, payload)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
