// Command validate checks a sensor threshold table before it is deployed:
// it parses the file, confirms every configured band range classifies into
// its own band, and checks the topics against the monitor's routing rules.
// With -postgres it also compares the file with the seeded table.
//
// Usage:
//
//	go run ./cmd/validate -config configs/sensors.yaml [-postgres postgres://...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/sensor-threshold-service/internal/adapter/postgres"
	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
	"github.com/couchcryptid/sensor-threshold-service/internal/registry"
)

// phase tracks pass/fail for a validation phase. Warnings are reported but
// never fail the run.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	configPath := flag.String("config", "configs/sensors.yaml", "sensor table to validate")
	statusSuffix := flag.String("status-suffix", "/status", "suffix the monitor appends to status topics")
	dsn := flag.String("postgres", "", "optional Postgres URL to compare against")
	flag.Parse()

	os.Exit(run(*configPath, *statusSuffix, *dsn))
}

func run(configPath, statusSuffix, dsn string) int {
	fmt.Println("=== Sensor Table Validation ===")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := registry.NewFileSource(configPath).Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateBandRanges(reg),
		validateTopics(reg, statusSuffix),
	}
	if dsn != "" {
		phases = append(phases, validateDatabaseParity(ctx, reg, dsn))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mPASS (%d warnings)\033[0m", len(p.warnings))
		}
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Sensors: %d, types: %d, channels: %d\n", reg.Len(), len(reg.Types()), len(reg.Channels()))

	for _, p := range phases {
		if p.passed() && len(p.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		for _, w := range p.warnings {
			fmt.Printf("  [warn] %s\n", w)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateBandRanges checks that the midpoint of every configured range
// classifies into that range's band. A single-point critical range sitting
// on an acceptable bound (e.g. [0, 0] below accept_min 0) is calibration
// data and only warned about.
func validateBandRanges(reg *registry.Registry) *phase {
	p := &phase{name: "Band ranges classify into their band"}
	for _, th := range reg.Types() {
		for _, band := range []domain.Band{domain.BandCriticalLow, domain.BandAcceptable, domain.BandCriticalHigh} {
			lo, hi, _ := th.Range(band)
			mid := lo + (hi-lo)/2
			got := domain.Classify(th, mid)
			switch {
			case got == band:
			case lo == hi:
				p.warnf("%s: %s range [%g, %g] is a single point classified as %s", th.Name, band, lo, hi, got)
			default:
				p.errorf("%s: %s range [%g, %g] midpoint %g classifies as %s", th.Name, band, lo, hi, mid, got)
			}
		}
	}
	return p
}

// validateTopics rejects topics the monitor could never route to a sensor.
func validateTopics(reg *registry.Registry, statusSuffix string) *phase {
	p := &phase{name: "Topics are routable"}
	for _, e := range reg.Entries() {
		switch {
		case strings.ContainsAny(e.Topic, "+#"):
			p.errorf("%s: wildcard characters are not allowed in sensor topics", e.Topic)
		case strings.HasPrefix(e.Topic, "/") || strings.HasSuffix(e.Topic, "/"):
			p.errorf("%s: leading or trailing slash", e.Topic)
		case statusSuffix != "" && strings.HasSuffix(e.Topic, statusSuffix):
			p.errorf("%s: ends with the status suffix %q and would be ignored", e.Topic, statusSuffix)
		}
	}
	return p
}

// validateDatabaseParity compares the file with the table written by seed.
func validateDatabaseParity(ctx context.Context, reg *registry.Registry, dsn string) *phase {
	p := &phase{name: "Postgres table matches file"}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	defer db.Close()

	stored, err := postgres.NewThresholdStore(db).Load(ctx)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if diff := cmp.Diff(reg.Entries(), stored.Entries()); diff != "" {
		p.errorf("sensor entries differ (-file +postgres):\n%s", diff)
	}
	return p
}
