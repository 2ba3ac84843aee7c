// Package aodp reads current prices and price history from the Albion Online
// Data Project API. Requests are split into URL-length-safe batches and
// throttled by a two-window RateLimiter; a failed batch is logged and skipped.
package aodp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/millelog/albion-market-tools/internal/config"
)

const userAgent = "albion-market-tools/1.0 (github.com/millelog)"

// Client is a rate-limited pricing API client.
type Client struct {
	http    *resty.Client
	cfg     *config.Config
	baseURL string
	limiter *RateLimiter
	quotes  *QuoteCache // nil when quote caching is disabled

	// sem is the single request slot. It is held from Acquire until Commit,
	// so every caller sees the windows with all earlier requests recorded.
	sem chan struct{}
}

// NewClient creates a client for the configured region.
func NewClient(cfg *config.Config) *Client {
	h := resty.New()
	h.SetTimeout(cfg.HTTPTimeout())
	h.SetHeader("User-Agent", userAgent)
	h.SetHeader("Accept", "application/json")

	c := &Client{
		http:    h,
		cfg:     cfg,
		baseURL: cfg.BaseURL(),
		limiter: NewRateLimiter(cfg.RateLimit),
		sem:     make(chan struct{}, 1),
	}
	if ttl := cfg.QuoteCacheTTL(); ttl > 0 {
		c.quotes = NewQuoteCache(quoteCacheSize, ttl)
	}
	return c
}

// BaseURL returns the host requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// getRecords performs one GET and splits the JSON array response into raw records.
func (c *Client) getRecords(ctx context.Context, url string) ([]json.RawMessage, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, fmt.Errorf("AODP %d: %s", resp.StatusCode(), body)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return records, nil
}

// fetchBatches runs the batch, acquire, fetch, commit cycle for one endpoint.
// Concurrent calls on one Client interleave batch by batch under one limiter.
// handle is called with the raw records of every successful batch. A failed
// batch is logged and skipped. Cancellation while waiting on the limiter stops
// the remaining batches.
func (c *Client) fetchBatches(ctx context.Context, kind, template string, items []string, params map[string]string, handle func([]json.RawMessage)) {
	batches := SplitBatches(items, c.cfg.MaxURLLength, c.baseURL, template, params)
	start := time.Now()
	failed := 0
	for i, batch := range batches {
		if err := c.reserve(ctx); err != nil {
			log.Printf("[AODP] %s: stopped before batch %d/%d: %v", kind, i+1, len(batches), err)
			return
		}
		url := renderURL(c.baseURL, template, joinItems(batch), params)
		records, err := c.getRecords(ctx, url)
		c.limiter.Commit()
		<-c.sem
		if err != nil {
			failed++
			log.Printf("[AODP] %s batch %d/%d (%d items) failed: %v", kind, i+1, len(batches), len(batch), err)
			continue
		}
		log.Printf("[AODP] %s batch %d/%d: %d records", kind, i+1, len(batches), len(records))
		handle(records)
	}
	if len(batches) > 0 {
		log.Printf("[AODP] %s: %d batches (%d failed) in %v", kind, len(batches), failed, time.Since(start).Round(time.Millisecond))
	}
}

// reserve takes the request slot and waits for rate-limit admission. On
// success the caller owns the slot and must release it after Commit.
func (c *Client) reserve(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.limiter.Acquire(ctx); err != nil {
		<-c.sem
		return err
	}
	return nil
}

// qualityOrDefault resolves an absent quality to 1. A present value below 1 is invalid.
func qualityOrDefault(q *int) (int, bool) {
	if q == nil {
		return 1, true
	}
	return *q, *q >= 1
}
