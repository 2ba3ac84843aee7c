package engine

import (
	"context"
	"log"

	"github.com/millelog/albion-market-tools/internal/config"
)

// TopItemsQuery selects the highest market-value stats of one location.
type TopItemsQuery struct {
	Location      string
	Limit         int     // <= 0: no limit
	MinDataPoints int     // <= 0: configured minimum
	MinVolume     float64 // <= 0: no volume filter
}

// StatsStore is the persisted side of the pipeline.
type StatsStore interface {
	UpsertStats(stats []HistoricalStat) int
	TopItems(q TopItemsQuery) ([]HistoricalStat, error)
	ItemStats(itemID string, quality int, location string) (HistoricalStat, bool, error)
}

// Analyzer runs the ranking pass over every configured location.
type Analyzer struct {
	cfg    *config.Config
	store  StatsStore
	engine *Engine
}

// NewAnalyzer wires the store and flip engine together.
func NewAnalyzer(cfg *config.Config, store StatsStore, engine *Engine) *Analyzer {
	return &Analyzer{cfg: cfg, store: store, engine: engine}
}

// TopItems returns the candidates of one location, sized by items-to-analyze
// when limit is not positive. A store error is logged and yields no items.
func (a *Analyzer) TopItems(location string, limit int, minVolume float64) []HistoricalStat {
	if limit <= 0 {
		limit = a.cfg.Flip.ItemsToAnalyze
	}
	items, err := a.store.TopItems(TopItemsQuery{Location: location, Limit: limit, MinVolume: minVolume})
	if err != nil {
		log.Printf("[FLIP] top items for %s: %v", location, err)
		return nil
	}
	return items
}

// AnalyzeLocation ranks the opportunities of one location from stored stats.
func (a *Analyzer) AnalyzeLocation(ctx context.Context, location string, limit int, key SortKey) []FlipOpportunity {
	return a.engine.Analyze(ctx, location, a.TopItems(location, limit, 0), key)
}

// AnalyzeAll runs AnalyzeLocation for every configured location. A location
// without data maps to an empty list, never to a missing key.
func (a *Analyzer) AnalyzeAll(ctx context.Context, key SortKey) map[string][]FlipOpportunity {
	out := make(map[string][]FlipOpportunity, len(a.cfg.Locations))
	for _, loc := range a.cfg.Locations {
		ops := a.AnalyzeLocation(ctx, loc, 0, key)
		if ops == nil {
			ops = []FlipOpportunity{}
		}
		out[loc] = ops
	}
	return out
}

// AnalyzeCandidates ranks externally supplied candidates (popular-items lists)
// per location instead of stored stats.
func (a *Analyzer) AnalyzeCandidates(ctx context.Context, candidates map[string][]HistoricalStat, key SortKey) map[string][]FlipOpportunity {
	out := make(map[string][]FlipOpportunity, len(candidates))
	for _, loc := range a.cfg.Locations {
		items := candidates[loc]
		if n := a.cfg.Flip.ItemsToAnalyze; n > 0 && len(items) > n {
			items = items[:n]
		}
		ops := a.engine.Analyze(ctx, loc, items, key)
		if ops == nil {
			ops = []FlipOpportunity{}
		}
		out[loc] = ops
	}
	return out
}

// ItemMarketStats returns the stored stats of one item/quality in every
// configured location that has them.
func (a *Analyzer) ItemMarketStats(itemID string, quality int) map[string]HistoricalStat {
	out := make(map[string]HistoricalStat)
	for _, loc := range a.cfg.Locations {
		s, ok, err := a.store.ItemStats(itemID, quality, loc)
		if err != nil {
			log.Printf("[FLIP] stats for %s q%d in %s: %v", itemID, quality, loc, err)
			continue
		}
		if ok {
			out[loc] = s
		}
	}
	return out
}
