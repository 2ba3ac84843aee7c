package engine

import "time"

// HistoricalStat is the aggregated price history of one (location, item, quality).
type HistoricalStat struct {
	Location     string    `json:"location"`
	ItemID       string    `json:"item_id"`
	ItemName     string    `json:"item_name"`
	Quality      int       `json:"quality"`
	AvgItemCount float64   `json:"avg_item_count"` // mean traded volume per bucket
	AvgPrice     float64   `json:"avg_price"`
	DataPoints   int       `json:"data_points"`
	LastUpdated  time.Time `json:"last_updated"`
	MarketValue  float64   `json:"market_value"` // AvgItemCount * AvgPrice, filled on read
}

// EnchantLevel returns the @N suffix of the item id, 0 when absent.
func (s HistoricalStat) EnchantLevel() int {
	lvl, _ := ParseEnchantment(s.ItemID)
	return lvl
}

// FlipOpportunity is a profitable buy-order / sell-order pair on one market.
// Money values are whole silver; percentages carry one decimal.
type FlipOpportunity struct {
	Location     string  `json:"location"`
	ItemID       string  `json:"item_id"`
	ItemName     string  `json:"item_name"`
	Quality      int     `json:"quality"`
	EnchantLevel int     `json:"enchant_lvl"`
	AvgItemCount float64 `json:"avg_item_count"`
	AvgPrice     float64 `json:"avg_price"`

	BuyPrice        int64   `json:"buy_price"`
	SellPrice       int64   `json:"sell_price"`
	BuySetupFee     int64   `json:"buy_setup_fees"`
	SellSetupFee    int64   `json:"sell_setup_fees"`
	PremiumTax      int64   `json:"sell_premium_tax"`
	TotalFees       int64   `json:"total_fees"`
	FlipMargin      int64   `json:"flip_margin"`
	ExpectedVolume  int64   `json:"expected_volume"`
	PotentialProfit int64   `json:"potential_profit"`
	TotalInvestment int64   `json:"total_investment"`
	ROIPercent      float64 `json:"roi_percent"`
	MaxAdjustments  int64   `json:"max_adjustments"`
	BuyPriceRatio   float64 `json:"buy_price_ratio"`  // % deviation from AvgPrice
	SellPriceRatio  float64 `json:"sell_price_ratio"` // % deviation from AvgPrice
	Timestamp       string  `json:"timestamp"`        // quote sell_price_min_date
}

// SortKey selects the ranking of opportunities.
type SortKey string

const (
	SortByProfit SortKey = "profit"
	SortByROI    SortKey = "roi"
)

// ParseSortKey maps user input to a SortKey, defaulting to profit.
func ParseSortKey(s string) SortKey {
	if SortKey(s) == SortByROI {
		return SortByROI
	}
	return SortByProfit
}
