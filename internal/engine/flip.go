package engine

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/millelog/albion-market-tools/internal/aodp"
	"github.com/millelog/albion-market-tools/internal/config"
)

// QuoteSource supplies current quotes for a location.
type QuoteSource interface {
	FetchQuotes(ctx context.Context, itemIDs []string, location string) []aodp.Quote
}

// Fees is the cost breakdown of one buy-order / sell-order round trip.
type Fees struct {
	BuySetupFee  int64
	SellSetupFee int64
	PremiumTax   int64
	Total        int64
	Margin       int64 // sell - buy - Total
}

// Engine turns historical volume and current quotes into flip opportunities.
type Engine struct {
	cfg    *config.Config
	quotes QuoteSource
}

// NewEngine creates a flip engine. quotes may be nil when only Calculate is used.
func NewEngine(cfg *config.Config, quotes QuoteSource) *Engine {
	return &Engine{cfg: cfg, quotes: quotes}
}

// Fees computes setup fees on both legs (once per expected price adjustment
// plus the initial placement) and the premium tax on the sell leg.
func (e *Engine) Fees(buy, sell int64) Fees {
	f := e.cfg.Flip
	placements := float64(f.PriceAdjustments + 1)
	var fees Fees
	fees.BuySetupFee = roundInt(float64(buy) * f.SetupFeeRate * placements)
	fees.SellSetupFee = roundInt(float64(sell) * f.SetupFeeRate * placements)
	fees.PremiumTax = roundInt(float64(sell) * f.PremiumTaxRate)
	fees.Total = fees.BuySetupFee + fees.SellSetupFee + fees.PremiumTax
	fees.Margin = sell - buy - fees.Total
	return fees
}

// ExpectedVolume is the share of historical volume one resting order can
// expect to fill at the given quality.
func (e *Engine) ExpectedVolume(historicalVolume float64, quality int) int64 {
	atQuality := roundInt(historicalVolume * e.cfg.QualityMultiplier(quality))
	return roundInt(float64(atQuality) * e.cfg.Flip.VolumeCaptureRate)
}

// Calculate evaluates one candidate against its current quote. ok is false when
// prices are missing, the expected volume rounds to zero, the margin is not
// positive, or the profit is below the configured minimum.
func (e *Engine) Calculate(s HistoricalStat, q aodp.Quote) (FlipOpportunity, bool) {
	buy := roundInt(q.BuyPriceMax)
	sell := roundInt(q.SellPriceMin)
	if buy <= 0 || sell <= 0 {
		return FlipOpportunity{}, false
	}

	volume := e.ExpectedVolume(s.AvgItemCount, s.Quality)
	if volume <= 0 {
		return FlipOpportunity{}, false
	}

	fees := e.Fees(buy, sell)
	if fees.Margin <= 0 {
		return FlipOpportunity{}, false
	}

	var maxAdj int64
	if base := float64(fees.BuySetupFee+fees.SellSetupFee) / 2; base > 0 {
		maxAdj = int64(math.Floor(float64(fees.Margin)/base)) - 1
		if maxAdj < 0 {
			maxAdj = 0
		}
	}

	profit := fees.Margin * volume
	if float64(profit) < e.cfg.Flip.MinProfit {
		return FlipOpportunity{}, false
	}
	investment := (buy + fees.BuySetupFee) * volume
	var roi float64
	if investment > 0 {
		roi = round1(float64(profit) / float64(investment) * 100)
	}

	return FlipOpportunity{
		Location:        s.Location,
		ItemID:          s.ItemID,
		ItemName:        s.ItemName,
		Quality:         s.Quality,
		EnchantLevel:    s.EnchantLevel(),
		AvgItemCount:    s.AvgItemCount,
		AvgPrice:        s.AvgPrice,
		BuyPrice:        buy,
		SellPrice:       sell,
		BuySetupFee:     fees.BuySetupFee,
		SellSetupFee:    fees.SellSetupFee,
		PremiumTax:      fees.PremiumTax,
		TotalFees:       fees.Total,
		FlipMargin:      fees.Margin,
		ExpectedVolume:  volume,
		PotentialProfit: profit,
		TotalInvestment: investment,
		ROIPercent:      roi,
		MaxAdjustments:  maxAdj,
		BuyPriceRatio:   priceRatio(buy, s.AvgPrice),
		SellPriceRatio:  priceRatio(sell, s.AvgPrice),
		Timestamp:       q.SellPriceMinDate,
	}, true
}

// priceRatio is the percentage deviation of price from avg, 0 when avg is unknown.
func priceRatio(price int64, avg float64) float64 {
	if avg <= 0 {
		return 0
	}
	return round1((float64(price) - avg) / avg * 100)
}

type quoteKey struct {
	itemID  string
	quality int
}

// Analyze fetches quotes for the candidates at location and returns the
// profitable ones, ranked by key and truncated to the display count.
func (e *Engine) Analyze(ctx context.Context, location string, candidates []HistoricalStat, key SortKey) []FlipOpportunity {
	if len(candidates) == 0 || e.quotes == nil {
		return nil
	}

	seen := make(map[string]bool, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !seen[c.ItemID] {
			seen[c.ItemID] = true
			ids = append(ids, c.ItemID)
		}
	}

	quotes := e.quotes.FetchQuotes(ctx, ids, location)
	if len(quotes) == 0 {
		log.Printf("[FLIP] %s: no current quotes for %d items", location, len(ids))
		return nil
	}
	lookup := make(map[quoteKey]aodp.Quote, len(quotes))
	for _, q := range quotes {
		lookup[quoteKey{q.ItemID, q.Quality}] = q
	}

	var out []FlipOpportunity
	for _, c := range candidates {
		q, ok := lookup[quoteKey{c.ItemID, c.Quality}]
		if !ok {
			continue
		}
		if c.Location == "" {
			c.Location = location
		}
		if opp, ok := e.Calculate(c, q); ok {
			out = append(out, opp)
		}
	}
	SortBy(out, key)
	if n := e.cfg.Flip.OpportunitiesToShow; n > 0 && len(out) > n {
		out = out[:n]
	}
	log.Printf("[FLIP] %s: %d opportunities from %d candidates", location, len(out), len(candidates))
	return out
}

// SortBy orders opportunities descending by potential profit or ROI.
func SortBy(ops []FlipOpportunity, key SortKey) {
	sort.SliceStable(ops, func(i, j int) bool {
		if key == SortByROI {
			return ops[i].ROIPercent > ops[j].ROIPercent
		}
		return ops[i].PotentialProfit > ops[j].PotentialProfit
	})
}
