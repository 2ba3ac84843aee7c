package db

import (
	"log"
	"time"

	"github.com/millelog/albion-market-tools/internal/engine"
)

// RecordRun stores the summary of a history refresh.
func (d *DB) RecordRun(s engine.RefreshSummary) {
	_, err := d.sql.Exec(
		`INSERT OR REPLACE INTO refresh_runs (run_id, started_at, items, records, stats, written, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.StartedAt.UTC().Format(time.RFC3339), s.Items, s.Records, s.Stats, s.Written, s.Duration.Milliseconds(),
	)
	if err != nil {
		log.Printf("[DB] RecordRun %s: %v", s.RunID, err)
	}
}

// RecentRuns returns the last N refresh runs (newest first).
func (d *DB) RecentRuns(limit int) []engine.RefreshSummary {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.Query(
		`SELECT run_id, started_at, items, records, stats, written, duration_ms
		 FROM refresh_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return []engine.RefreshSummary{}
	}
	defer rows.Close()

	out := []engine.RefreshSummary{}
	for rows.Next() {
		var s engine.RefreshSummary
		var started string
		var ms int64
		if err := rows.Scan(&s.RunID, &started, &s.Items, &s.Records, &s.Stats, &s.Written, &ms); err != nil {
			continue
		}
		s.StartedAt, _ = time.Parse(time.RFC3339, started)
		s.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, s)
	}
	return out
}
