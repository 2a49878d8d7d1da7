package observability

import (
	"context"
	"fmt"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// ReadinessFunc adapts a plain function to sharedobs.ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

type namedChecker struct {
	name    string
	checker sharedobs.ReadinessChecker
}

// Readiness combines several named checks; the service is ready only when
// every check passes.
type Readiness struct {
	checks []namedChecker
}

// AllReady returns an empty composite readiness check.
func AllReady() *Readiness {
	return &Readiness{}
}

// Add registers a named check and returns r for chaining.
func (r *Readiness) Add(name string, c sharedobs.ReadinessChecker) *Readiness {
	r.checks = append(r.checks, namedChecker{name: name, checker: c})
	return r
}

// CheckReadiness reports the first failing check.
func (r *Readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r.checks {
		if err := c.checker.CheckReadiness(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
