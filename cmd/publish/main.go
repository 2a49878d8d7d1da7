// Command publish sends one message to an MQTT topic.
//
// Usage:
//
//	go run ./cmd/publish [-broker tcp://localhost:1883] <topic> <message> [qos retain]
//
// qos must be 0, 1 or 2. retain accepts true/1/t/y/yes or false/0/f/n/no.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
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
	clientID := flag.String("client-id", "sensor-publish", "MQTT client ID")
	timeout := flag.Duration("timeout", 5*time.Second, "connect and publish timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 && len(args) != 4 {
		flag.Usage()
		return fmt.Errorf("usage: publish <topic> <message> [qos retain]")
	}
	topic, message := args[0], args[1]

	var qos byte
	var retain bool
	if len(args) == 4 {
		var err error
		if qos, err = config.ParseQoS(args[2]); err != nil {
			return fmt.Errorf("invalid quality of service: %w", err)
		}
		if retain, err = config.ParseBool(args[3]); err != nil {
			return fmt.Errorf("invalid retain flag: %w", err)
		}
	}

	logger := sharedobs.NewLogger("warn", "text")
	client := mqttadapter.NewClient(mqttadapter.ClientConfig{
		Broker:   *broker,
		ClientID: *clientID,
		Timeout:  *timeout,
	}, logger, observability.NewMetricsForTesting())

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect(250 * time.Millisecond)

	if err := client.Publish(ctx, topic, qos, retain, []byte(message)); err != nil {
		return err
	}
	fmt.Printf("Published %q to topic %s (qos=%d, retain=%t)\n", message, topic, qos, retain)
	return nil
}
