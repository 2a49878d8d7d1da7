package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
	"github.com/couchcryptid/sensor-threshold-service/internal/registry"
)

const upsertThreshold = `INSERT INTO sensor_thresholds
    (topic, type_name, min_critical_lower, min_critical_upper, accept_min, accept_max, max_critical_lower, max_critical_upper, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (topic) DO UPDATE SET
    type_name = EXCLUDED.type_name,
    min_critical_lower = EXCLUDED.min_critical_lower,
    min_critical_upper = EXCLUDED.min_critical_upper,
    accept_min = EXCLUDED.accept_min,
    accept_max = EXCLUDED.accept_max,
    max_critical_lower = EXCLUDED.max_critical_lower,
    max_critical_upper = EXCLUDED.max_critical_upper,
    updated_at = now()`

const selectThresholds = `SELECT topic, type_name, min_critical_lower, min_critical_upper, accept_min, accept_max, max_critical_lower, max_critical_upper
FROM sensor_thresholds
ORDER BY topic`

// ThresholdStore keeps the sensor threshold table in the sensor_thresholds
// table. It doubles as a registry.Source.
type ThresholdStore struct {
	db *sql.DB
}

// NewThresholdStore creates a ThresholdStore.
func NewThresholdStore(db *sql.DB) *ThresholdStore {
	return &ThresholdStore{db: db}
}

func (s *ThresholdStore) Name() string { return "postgres" }

// Save upserts every sensor of r in one transaction and returns the number
// of rows written.
func (s *ThresholdStore) Save(ctx context.Context, r *registry.Registry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entries := r.Entries()
	for _, e := range entries {
		th := e.Threshold
		if _, err := tx.ExecContext(ctx, upsertThreshold,
			e.Topic, th.Name,
			th.MinCriticalLower, th.MinCriticalUpper,
			th.AcceptMin, th.AcceptMax,
			th.MaxCriticalLower, th.MaxCriticalUpper,
		); err != nil {
			return 0, fmt.Errorf("upsert threshold %s: %w", e.Topic, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(entries), nil
}

// Load builds a registry from the stored table. Rows are validated exactly
// like file entries; one bad row fails the whole load.
func (s *ThresholdStore) Load(ctx context.Context) (*registry.Registry, error) {
	rows, err := s.db.QueryContext(ctx, selectThresholds)
	if err != nil {
		return nil, fmt.Errorf("query sensor thresholds: %w", err)
	}
	defer rows.Close()

	r := registry.New()
	for rows.Next() {
		var (
			topic string
			th    domain.Threshold
		)
		if err := rows.Scan(&topic, &th.Name,
			&th.MinCriticalLower, &th.MinCriticalUpper,
			&th.AcceptMin, &th.AcceptMax,
			&th.MaxCriticalLower, &th.MaxCriticalUpper,
		); err != nil {
			return nil, fmt.Errorf("scan sensor threshold: %w", err)
		}
		if err := r.Register(topic, th); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensor thresholds: %w", err)
	}
	return r, nil
}
