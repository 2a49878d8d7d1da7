// Command seed applies the database migrations and writes the sensor
// threshold table from a YAML file into Postgres, so the monitor can run
// with REGISTRY_SOURCE=postgres.
//
// Usage:
//
//	POSTGRES_URL=postgres://... go run ./cmd/seed [-config configs/sensors.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/sensor-threshold-service/internal/adapter/postgres"
	"github.com/couchcryptid/sensor-threshold-service/internal/registry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", sharedcfg.EnvOrDefault("SENSOR_CONFIG_PATH", "configs/sensors.yaml"), "sensor table")
	dsn := flag.String("postgres", sharedcfg.EnvOrDefault("POSTGRES_URL", ""), "Postgres connection URL")
	flag.Parse()

	if *dsn == "" {
		flag.Usage()
		return errors.New("missing Postgres URL: set -postgres or POSTGRES_URL")
	}

	logger := sharedobs.NewLogger("info", "text")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reg, err := registry.NewFileSource(*configPath).Load(ctx)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(db, logger); err != nil {
		return err
	}

	n, err := postgres.NewThresholdStore(db).Save(ctx, reg)
	if err != nil {
		return err
	}
	logger.Info("sensor thresholds seeded", "rows", n, "source", *configPath)
	return nil
}
