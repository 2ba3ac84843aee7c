package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/millelog/albion-market-tools/internal/engine"
)

const statColumns = `location, item_id, item_name, quality, avg_item_count, avg_price,
	data_points, last_updated, avg_item_count * avg_price AS market_value`

// UpsertStats inserts each stat or overwrites the row with the same
// (location, item_id, quality). A failing row is logged and the rest are
// still written. Returns the number of rows written.
func (d *DB) UpsertStats(stats []engine.HistoricalStat) int {
	if len(stats) == 0 {
		return 0
	}
	tx, err := d.sql.Begin()
	if err != nil {
		log.Printf("[DB] UpsertStats: begin: %v", err)
		return 0
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO history_stats
			(location, item_id, item_name, quality, avg_item_count, avg_price, data_points, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, item_id, quality) DO UPDATE SET
			item_name      = excluded.item_name,
			avg_item_count = excluded.avg_item_count,
			avg_price      = excluded.avg_price,
			data_points    = excluded.data_points,
			last_updated   = excluded.last_updated`)
	if err != nil {
		log.Printf("[DB] UpsertStats: prepare: %v", err)
		return 0
	}
	defer stmt.Close()

	updated := d.now().UTC().Format(time.RFC3339)
	written := 0
	for _, s := range stats {
		_, err := stmt.Exec(s.Location, s.ItemID, s.ItemName, s.Quality,
			s.AvgItemCount, s.AvgPrice, s.DataPoints, updated)
		if err != nil {
			log.Printf("[DB] UpsertStats: %s q%d in %q: %v", s.ItemID, s.Quality, s.Location, err)
			continue
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[DB] UpsertStats: commit: %v", err)
		return 0
	}
	log.Printf("[DB] UpsertStats: %d/%d rows written", written, len(stats))
	return written
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStat(r rowScanner) (engine.HistoricalStat, error) {
	var s engine.HistoricalStat
	var updated string
	err := r.Scan(&s.Location, &s.ItemID, &s.ItemName, &s.Quality,
		&s.AvgItemCount, &s.AvgPrice, &s.DataPoints, &updated, &s.MarketValue)
	if err != nil {
		return s, err
	}
	s.LastUpdated, _ = time.Parse(time.RFC3339, updated)
	return s, nil
}

func (d *DB) queryStats(query string, args ...interface{}) ([]engine.HistoricalStat, error) {
	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.HistoricalStat
	for rows.Next() {
		s, err := scanStat(rows)
		if err != nil {
			log.Printf("[DB] scan stat: %v", err)
			continue
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TopItems returns the stats of q.Location ranked by market value
// (avg_item_count * avg_price) descending.
func (d *DB) TopItems(q engine.TopItemsQuery) ([]engine.HistoricalStat, error) {
	minPoints := q.MinDataPoints
	if minPoints <= 0 {
		minPoints = d.minDataPoints
	}

	where := []string{"location = ?"}
	args := []interface{}{q.Location}
	if minPoints > 0 {
		where = append(where, "data_points >= ?")
		args = append(args, minPoints)
	}
	if q.MinVolume > 0 {
		where = append(where, "avg_item_count >= ?")
		args = append(args, q.MinVolume)
	}
	query := "SELECT " + statColumns + " FROM history_stats WHERE " +
		strings.Join(where, " AND ") + " ORDER BY market_value DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	out, err := d.queryStats(query, args...)
	if err != nil {
		return nil, fmt.Errorf("top items %s: %w", q.Location, err)
	}
	return out, nil
}

// ItemStats returns the stat of one item/quality at location.
func (d *DB) ItemStats(itemID string, quality int, location string) (engine.HistoricalStat, bool, error) {
	row := d.sql.QueryRow("SELECT "+statColumns+
		" FROM history_stats WHERE item_id = ? AND quality = ? AND location = ?",
		itemID, quality, location)
	s, err := scanStat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.HistoricalStat{}, false, nil
	}
	if err != nil {
		return engine.HistoricalStat{}, false, fmt.Errorf("item stats %s: %w", itemID, err)
	}
	return s, true, nil
}

// StaleStats returns rows not updated within maxAgeHours, oldest first.
func (d *DB) StaleStats(maxAgeHours int) ([]engine.HistoricalStat, error) {
	cutoff := d.now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour).Format(time.RFC3339)
	out, err := d.queryStats("SELECT "+statColumns+
		" FROM history_stats WHERE last_updated < ? ORDER BY last_updated ASC", cutoff)
	if err != nil {
		return nil, fmt.Errorf("stale stats: %w", err)
	}
	return out, nil
}

// StaleItemIDs returns the distinct item ids of StaleStats, oldest first.
func (d *DB) StaleItemIDs(maxAgeHours int) ([]string, error) {
	stale, err := d.StaleStats(maxAgeHours)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stale))
	var ids []string
	for _, s := range stale {
		if !seen[s.ItemID] {
			seen[s.ItemID] = true
			ids = append(ids, s.ItemID)
		}
	}
	return ids, nil
}

// PurgeOlderThan deletes rows not updated within maxAgeDays and returns how many were removed.
func (d *DB) PurgeOlderThan(maxAgeDays int) (int64, error) {
	cutoff := d.now().UTC().AddDate(0, 0, -maxAgeDays).Format(time.RFC3339)
	res, err := d.sql.Exec("DELETE FROM history_stats WHERE last_updated < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge stats: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("[DB] PurgeOlderThan(%dd): removed %d rows", maxAgeDays, n)
	}
	return n, nil
}

// StatsCount returns the number of stored stats per location.
func (d *DB) StatsCount() (map[string]int, error) {
	rows, err := d.sql.Query("SELECT location, COUNT(*) FROM history_stats GROUP BY location")
	if err != nil {
		return nil, fmt.Errorf("count stats: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var loc string
		var n int
		if err := rows.Scan(&loc, &n); err != nil {
			return nil, err
		}
		out[loc] = n
	}
	return out, rows.Err()
}
