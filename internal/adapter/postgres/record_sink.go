package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

const recordColumns = 6

// DefaultEventsTable is the events table created by the embedded migrations.
const DefaultEventsTable = "classification_events"

// RecordSink appends classification events to a table. Inserts are
// idempotent on the event ID, so a retried batch never duplicates rows.
type RecordSink struct {
	db    *sql.DB
	table string
}

// NewRecordSink creates a RecordSink for table, which may be schema-qualified.
func NewRecordSink(db *sql.DB, table string) (*RecordSink, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordSink{db: db, table: table}, nil
}

func (s *RecordSink) Name() string { return "postgres" }

// EnsureTable creates a custom events table with the same columns and
// indexes as DefaultEventsTable. Migrations must have run first.
func (s *RecordSink) EnsureTable(ctx context.Context) error {
	if s.table == DefaultEventsTable {
		return nil
	}
	stmt := "CREATE TABLE IF NOT EXISTS " + s.table + " (LIKE " + DefaultEventsTable + " INCLUDING ALL)"
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create events table %s: %w", s.table, err)
	}
	return nil
}

func (s *RecordSink) Write(ctx context.Context, event domain.ClassificationEvent) error {
	return s.WriteBatch(ctx, []domain.ClassificationEvent{event})
}

// WriteBatch inserts events with one multi-row statement.
func (s *RecordSink) WriteBatch(ctx context.Context, events []domain.ClassificationEvent) error {
	if len(events) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.table)
	b.WriteString(" (id, type_name, topic, band, value, ts) VALUES ")

	args := make([]any, 0, len(events)*recordColumns)
	for i, e := range events {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, e.ID, e.TypeName, e.Topic, e.Band.String(), e.Value, e.Timestamp)
	}
	b.WriteString(" ON CONFLICT (id) DO NOTHING")

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert classification events: %w", err)
	}
	return nil
}
