package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/millelog/albion-market-tools/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite market store. It is the single writer of history_stats.
type DB struct {
	sql           *sql.DB
	minDataPoints int
	now           func() time.Time
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// minDataPoints is the default TopItems threshold.
func Open(path string, minDataPoints int) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB, minDataPoints: minDataPoints, now: time.Now}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh file leaves version at 0.
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS history_stats (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				location       TEXT NOT NULL CHECK (location <> ''),
				item_id        TEXT NOT NULL CHECK (item_id <> ''),
				item_name      TEXT NOT NULL DEFAULT '',
				quality        INTEGER NOT NULL CHECK (quality >= 1),
				avg_item_count REAL NOT NULL,
				avg_price      REAL NOT NULL,
				data_points    INTEGER NOT NULL,
				last_updated   TEXT NOT NULL,
				UNIQUE (location, item_id, quality)
			);
			CREATE INDEX IF NOT EXISTS idx_location_stats ON history_stats(location, avg_item_count, avg_price);
			CREATE INDEX IF NOT EXISTS idx_stats_updated ON history_stats(last_updated);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1 (history stats)")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS refresh_runs (
				run_id      TEXT PRIMARY KEY,
				started_at  TEXT NOT NULL,
				items       INTEGER NOT NULL,
				records     INTEGER NOT NULL,
				stats       INTEGER NOT NULL,
				written     INTEGER NOT NULL,
				duration_ms INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_refresh_runs_started ON refresh_runs(started_at);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (refresh runs)")
	}

	return nil
}
