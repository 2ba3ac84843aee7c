package aodp

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
)

// HistoryPoint is one bucket of a history series.
type HistoryPoint struct {
	Timestamp string  `json:"timestamp"` // "2006-01-02T15:04:05", UTC without zone
	ItemCount float64 `json:"item_count"`
	AvgPrice  float64 `json:"avg_price"`
}

// HistoryRecord is the price history of one (location, item, quality).
// Quality is nil when the API omitted it.
type HistoryRecord struct {
	Location string         `json:"location"`
	ItemID   string         `json:"item_id"`
	Quality  *int           `json:"quality"`
	Data     []HistoryPoint `json:"data"`
}

// FetchHistory returns the history records with a non-empty series for
// itemIDs across the configured locations. timeScale is in hours (1, 6 or 24).
// Results are the union of all successful batches in no particular order.
func (c *Client) FetchHistory(ctx context.Context, itemIDs []string, timeScale int) []HistoryRecord {
	if len(itemIDs) == 0 {
		return nil
	}
	params := map[string]string{
		"locations":  locationsParam(c.cfg.Locations),
		"time_scale": strconv.Itoa(timeScale),
	}
	var out []HistoryRecord
	c.fetchBatches(ctx, "history", c.cfg.Endpoints.History, itemIDs, params, func(records []json.RawMessage) {
		for _, raw := range records {
			var r HistoryRecord
			if err := json.Unmarshal(raw, &r); err != nil {
				log.Printf("[AODP] Skipping malformed history record: %v", err)
				continue
			}
			if len(r.Data) == 0 {
				continue
			}
			out = append(out, r)
		}
	})
	log.Printf("[AODP] %d history records for %d items", len(out), len(itemIDs))
	return out
}
