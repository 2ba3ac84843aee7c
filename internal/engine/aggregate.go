package engine

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/millelog/albion-market-tools/internal/aodp"
	"github.com/millelog/albion-market-tools/internal/config"
)

// historyTimeLayout is the zone-less UTC timestamp of history points.
const historyTimeLayout = "2006-01-02T15:04:05"

// NameResolver maps item ids to display names.
type NameResolver interface {
	Name(itemID string) string
}

// Aggregator reduces raw history records to HistoricalStat rows.
type Aggregator struct {
	maxDays   int
	minPoints int
	names     NameResolver // may be nil
	now       func() time.Time
}

// NewAggregator creates an aggregator with the configured retention and
// sample threshold. names may be nil, leaving item names empty.
func NewAggregator(h config.History, names NameResolver) *Aggregator {
	return &Aggregator{
		maxDays:   h.MaxDays,
		minPoints: h.MinDataPoints,
		names:     names,
		now:       time.Now,
	}
}

// ParseEnchantment returns N for ids of the form BASE@N and 0 without a suffix.
// An unparseable suffix yields 0 and an error.
func ParseEnchantment(itemID string) (int, error) {
	_, suffix, ok := strings.Cut(itemID, "@")
	if !ok {
		return 0, nil
	}
	lvl, err := strconv.Atoi(suffix)
	if err != nil || lvl < 0 {
		return 0, fmt.Errorf("bad enchantment suffix in %q", itemID)
	}
	return lvl, nil
}

func parsePointTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(historyTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Aggregate returns one stat per record that keeps at least minPoints valid
// points inside the retention window. Means are rounded to 2 decimals.
func (a *Aggregator) Aggregate(records []aodp.HistoryRecord) []HistoricalStat {
	now := a.now().UTC()
	cutoff := now.AddDate(0, 0, -a.maxDays)

	var out []HistoricalStat
	skipped, thin := 0, 0
	for _, r := range records {
		quality := 1
		if r.Quality != nil {
			quality = *r.Quality
		}
		if r.Location == "" || r.ItemID == "" || quality < 1 {
			log.Printf("[AGG] Skipping record with missing key data: location=%q item=%q quality=%d", r.Location, r.ItemID, quality)
			skipped++
			continue
		}

		counts := make([]float64, 0, len(r.Data))
		prices := make([]float64, 0, len(r.Data))
		for _, p := range r.Data {
			if p.ItemCount <= 0 || p.AvgPrice <= 0 {
				continue
			}
			ts, err := parsePointTime(p.Timestamp)
			if err != nil || !ts.After(cutoff) {
				continue
			}
			counts = append(counts, p.ItemCount)
			prices = append(prices, p.AvgPrice)
		}
		if len(counts) < a.minPoints || len(counts) == 0 {
			thin++
			continue
		}

		if _, err := ParseEnchantment(r.ItemID); err != nil {
			log.Printf("[AGG] %v, using enchantment 0", err)
		}
		name := ""
		if a.names != nil {
			name = a.names.Name(r.ItemID)
		}
		out = append(out, HistoricalStat{
			Location:     r.Location,
			ItemID:       r.ItemID,
			ItemName:     name,
			Quality:      quality,
			AvgItemCount: round2(stat.Mean(counts, nil)),
			AvgPrice:     round2(stat.Mean(prices, nil)),
			DataPoints:   len(counts),
			LastUpdated:  now,
		})
	}
	log.Printf("[AGG] %d records -> %d stats (%d malformed, %d insufficient data)", len(records), len(out), skipped, thin)
	return out
}
