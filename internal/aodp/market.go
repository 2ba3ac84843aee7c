package aodp

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
)

// Quote is one location's current order book top for an (item, quality) pair.
type Quote struct {
	ItemID           string  `json:"item_id"`
	City             string  `json:"city"`
	Quality          int     `json:"quality"`
	SellPriceMin     float64 `json:"sell_price_min"`
	SellPriceMinDate string  `json:"sell_price_min_date"`
	BuyPriceMax      float64 `json:"buy_price_max"`
}

// Valid reports whether both sides of the book are quoted.
func (q Quote) Valid() bool {
	return q.BuyPriceMax > 0 && q.SellPriceMin > 0
}

// quoteRecord is the wire shape; quality may be absent.
type quoteRecord struct {
	ItemID           string  `json:"item_id"`
	City             string  `json:"city"`
	Quality          *int    `json:"quality"`
	SellPriceMin     float64 `json:"sell_price_min"`
	SellPriceMinDate string  `json:"sell_price_min_date"`
	BuyPriceMax      float64 `json:"buy_price_max"`
}

// decodeQuote converts one raw record. ok is false for malformed or unquoted records.
func decodeQuote(raw json.RawMessage) (Quote, bool) {
	var r quoteRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		log.Printf("[AODP] Skipping malformed price record: %v", err)
		return Quote{}, false
	}
	quality, ok := qualityOrDefault(r.Quality)
	if r.ItemID == "" || !ok {
		log.Printf("[AODP] Skipping price record with missing item or bad quality: %s", raw)
		return Quote{}, false
	}
	q := Quote{
		ItemID:           r.ItemID,
		City:             r.City,
		Quality:          quality,
		SellPriceMin:     r.SellPriceMin,
		SellPriceMinDate: r.SellPriceMinDate,
		BuyPriceMax:      r.BuyPriceMax,
	}
	return q, q.Valid()
}

// FetchQuotes returns the valid current quotes for itemIDs at location.
// Failed batches contribute nothing; an empty result is not an error.
// Quotes younger than the configured cache TTL are served from memory.
func (c *Client) FetchQuotes(ctx context.Context, itemIDs []string, location string) []Quote {
	if len(itemIDs) == 0 {
		return nil
	}
	if c.quotes == nil {
		return c.fetchQuotes(ctx, itemIDs, location)
	}
	return c.quotes.Fetch(location, itemIDs, func(missing []string) []Quote {
		return c.fetchQuotes(ctx, missing, location)
	})
}

// PurgeQuotes drops every cached quote so the next FetchQuotes hits the API.
func (c *Client) PurgeQuotes() {
	if c.quotes != nil {
		c.quotes.Purge()
	}
}

func (c *Client) fetchQuotes(ctx context.Context, itemIDs []string, location string) []Quote {
	params := map[string]string{"locations": url.PathEscape(location)}
	var out []Quote
	c.fetchBatches(ctx, "prices "+location, c.cfg.Endpoints.Prices, itemIDs, params, func(records []json.RawMessage) {
		for _, raw := range records {
			if q, ok := decodeQuote(raw); ok {
				out = append(out, q)
			}
		}
	})
	log.Printf("[AODP] %d valid quotes for %d items in %s", len(out), len(itemIDs), location)
	return out
}

// locationsParam renders the configured locations for the history endpoint.
func locationsParam(locs []string) string {
	esc := make([]string, len(locs))
	for i, l := range locs {
		esc[i] = url.PathEscape(l)
	}
	return strings.Join(esc, ",")
}
