package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/visiongate/visiongate/pkg/models"
)

// Tracker records and queries analysis cycles. Unlike the cache and the
// quota counter, the ledger persists: it is observability data, not gateway
// state, and losing it would not change any gateway decision.
type Tracker interface {
	// Record stores one cycle record.
	Record(ctx context.Context, rec models.CycleRecord) error
	// Summary returns aggregates grouped by outcome.
	Summary(ctx context.Context) ([]models.CycleSummary, error)
	// Recent returns the latest cycles, newest first.
	Recent(ctx context.Context, limit int) ([]models.CycleRecord, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS cycle_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detections INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_cycles_outcome_time ON cycle_records(outcome, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores one cycle record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.CycleRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO cycle_records (cycle_id, fingerprint, outcome, detections, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.Fingerprint, rec.Outcome, rec.Detections, rec.LatencyMs, created,
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// Summary returns aggregates grouped by outcome.
func (t *SQLiteTracker) Summary(ctx context.Context) ([]models.CycleSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*), COALESCE(SUM(detections), 0), COALESCE(AVG(latency_ms), 0)
		 FROM cycle_records GROUP BY outcome ORDER BY outcome`,
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.CycleSummary
	for rows.Next() {
		var s models.CycleSummary
		if err := rows.Scan(&s.Outcome, &s.Count, &s.Detections, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Recent returns the latest cycles, newest first.
func (t *SQLiteTracker) Recent(ctx context.Context, limit int) ([]models.CycleRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, cycle_id, fingerprint, outcome, detections, latency_ms, created_at
		 FROM cycle_records ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent cycles: %w", err)
	}
	defer rows.Close()

	var records []models.CycleRecord
	for rows.Next() {
		var r models.CycleRecord
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Fingerprint, &r.Outcome, &r.Detections, &r.LatencyMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
