package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/millelog/albion-market-tools/internal/engine"

	_ "modernc.org/sqlite"
)

// openTestDB opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	d := &DB{sql: sqlDB, minDataPoints: 5, now: time.Now}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func stat(loc, id string, q int, count, price float64, points int) engine.HistoricalStat {
	return engine.HistoricalStat{Location: loc, ItemID: id, ItemName: id + " name", Quality: q,
		AvgItemCount: count, AvgPrice: price, DataPoints: points}
}

func TestOpen_FileAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "market.db")
	d, err := Open(path, 5)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d.UpsertStats([]engine.HistoricalStat{stat("Lymhurst", "T4_BAG", 1, 10, 100, 5)})
	d.Close()

	// Migrations are idempotent and data survives.
	d, err = Open(path, 5)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if _, ok, _ := d.ItemStats("T4_BAG", 1, "Lymhurst"); !ok {
		t.Error("row lost after reopen")
	}
}

func TestUpsertStats_Idempotent(t *testing.T) {
	d := openTestDB(t)

	s := stat("Lymhurst", "T4_BAG", 1, 10, 100, 5)
	if n := d.UpsertStats([]engine.HistoricalStat{s}); n != 1 {
		t.Fatalf("first upsert wrote %d, want 1", n)
	}
	s.AvgItemCount, s.AvgPrice, s.DataPoints, s.ItemName = 20, 200, 7, "Adept's Bag"
	if n := d.UpsertStats([]engine.HistoricalStat{s}); n != 1 {
		t.Fatalf("second upsert wrote %d, want 1", n)
	}

	var rows int
	d.sql.QueryRow("SELECT COUNT(*) FROM history_stats").Scan(&rows)
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
	got, ok, err := d.ItemStats("T4_BAG", 1, "Lymhurst")
	if err != nil || !ok {
		t.Fatalf("ItemStats = %v, %v", ok, err)
	}
	if got.AvgItemCount != 20 || got.AvgPrice != 200 || got.DataPoints != 7 || got.ItemName != "Adept's Bag" {
		t.Errorf("stat = %+v, want latest values", got)
	}
	if got.MarketValue != 4000 {
		t.Errorf("MarketValue = %v, want 4000", got.MarketValue)
	}
}

func TestUpsertStats_RowFailureDoesNotAbortBatch(t *testing.T) {
	d := openTestDB(t)
	n := d.UpsertStats([]engine.HistoricalStat{
		stat("Lymhurst", "T4_BAG", 1, 10, 100, 5),
		stat("", "T5_BAG", 1, 10, 100, 5), // violates CHECK
		stat("Lymhurst", "T6_BAG", 1, 10, 100, 5),
	})
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	for _, id := range []string{"T4_BAG", "T6_BAG"} {
		if _, ok, _ := d.ItemStats(id, 1, "Lymhurst"); !ok {
			t.Errorf("%s missing after partial failure", id)
		}
	}
}

func TestTopItems_RankingAndFilters(t *testing.T) {
	d := openTestDB(t)
	d.UpsertStats([]engine.HistoricalStat{
		stat("Lymhurst", "A", 1, 10, 100, 10), // 1000
		stat("Lymhurst", "B", 1, 50, 100, 10), // 5000
		stat("Lymhurst", "C", 1, 5, 5000, 3),  // 25000, thin
		stat("Lymhurst", "D", 2, 100, 30, 6),  // 3000
		stat("Fort Sterling", "E", 1, 1e6, 1e6, 30),
	})

	got, err := d.TopItems(engine.TopItemsQuery{Location: "Lymhurst"})
	if err != nil {
		t.Fatalf("TopItems: %v", err)
	}
	var ids []string
	for i, s := range got {
		ids = append(ids, s.ItemID)
		if i > 0 && got[i-1].MarketValue < s.MarketValue {
			t.Errorf("not sorted by market value at %d", i)
		}
	}
	if len(ids) != 3 || ids[0] != "B" || ids[1] != "D" || ids[2] != "A" {
		t.Errorf("ranking = %v, want [B D A] (C below default min points)", ids)
	}

	got, _ = d.TopItems(engine.TopItemsQuery{Location: "Lymhurst", MinDataPoints: 1, Limit: 2})
	if len(got) != 2 || got[0].ItemID != "C" {
		t.Errorf("min points 1, limit 2 = %v, want C first", got)
	}

	prev := len(got)
	for _, mp := range []int{1, 5, 8, 11} {
		got, _ = d.TopItems(engine.TopItemsQuery{Location: "Lymhurst", MinDataPoints: mp})
		if mp > 1 && len(got) > prev {
			t.Errorf("min points %d returned %d rows, more than %d", mp, len(got), prev)
		}
		prev = len(got)
	}
	if prev != 0 {
		t.Errorf("min points 11 returned %d rows, want 0", prev)
	}

	got, _ = d.TopItems(engine.TopItemsQuery{Location: "Lymhurst", MinVolume: 20})
	if len(got) != 2 {
		t.Errorf("min volume 20 = %d rows, want 2 (B, D)", len(got))
	}
}

func TestStaleAndPurge(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	d.now = func() time.Time { return base.AddDate(0, 0, -40) }
	d.UpsertStats([]engine.HistoricalStat{stat("Lymhurst", "OLD", 1, 1, 1, 5)})
	d.now = func() time.Time { return base.Add(-30 * time.Hour) }
	d.UpsertStats([]engine.HistoricalStat{stat("Lymhurst", "DAY", 1, 1, 1, 5)})
	d.now = func() time.Time { return base.Add(-time.Hour) }
	d.UpsertStats([]engine.HistoricalStat{stat("Lymhurst", "NEW", 1, 1, 1, 5)})
	d.now = func() time.Time { return base }

	stale, err := d.StaleStats(24)
	if err != nil {
		t.Fatalf("StaleStats: %v", err)
	}
	if len(stale) != 2 || stale[0].ItemID != "OLD" || stale[1].ItemID != "DAY" {
		t.Errorf("stale = %v, want [OLD DAY] oldest first", stale)
	}
	ids, _ := d.StaleItemIDs(24)
	if len(ids) != 2 {
		t.Errorf("StaleItemIDs = %v", ids)
	}

	n, err := d.PurgeOlderThan(28)
	if err != nil || n != 1 {
		t.Errorf("PurgeOlderThan = %d, %v; want 1", n, err)
	}
	if _, ok, _ := d.ItemStats("OLD", 1, "Lymhurst"); ok {
		t.Error("OLD still present after purge")
	}
	counts, _ := d.StatsCount()
	if counts["Lymhurst"] != 2 {
		t.Errorf("StatsCount = %v, want Lymhurst: 2", counts)
	}
}

func TestItemStats_Missing(t *testing.T) {
	d := openTestDB(t)
	if _, ok, err := d.ItemStats("NOPE", 1, "Lymhurst"); ok || err != nil {
		t.Errorf("ItemStats(missing) = %v, %v; want false, nil", ok, err)
	}
}

func TestRefreshRuns_RoundTrip(t *testing.T) {
	d := openTestDB(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.RecordRun(engine.RefreshSummary{RunID: "r1", StartedAt: start, Items: 10, Records: 8, Stats: 5, Written: 5, Duration: 1500 * time.Millisecond})
	d.RecordRun(engine.RefreshSummary{RunID: "r2", StartedAt: start.Add(time.Hour), Items: 3})

	runs := d.RecentRuns(5)
	if len(runs) != 2 || runs[0].RunID != "r2" {
		t.Fatalf("RecentRuns = %+v, want r2 first", runs)
	}
	if runs[1].Written != 5 || runs[1].Duration != 1500*time.Millisecond || !runs[1].StartedAt.Equal(start) {
		t.Errorf("r1 = %+v", runs[1])
	}
}
