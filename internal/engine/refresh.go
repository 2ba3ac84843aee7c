package engine

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/millelog/albion-market-tools/internal/aodp"
	"github.com/millelog/albion-market-tools/internal/config"
)

// HistorySource supplies raw price history.
type HistorySource interface {
	FetchHistory(ctx context.Context, itemIDs []string, timeScale int) []aodp.HistoryRecord
}

// RunRecorder is implemented by stores that keep a log of refresh runs.
type RunRecorder interface {
	RecordRun(RefreshSummary)
}

// RefreshSummary describes one history refresh run.
type RefreshSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Items     int           `json:"items"`
	Records   int           `json:"records"`
	Stats     int           `json:"stats"`
	Written   int           `json:"written"`
	Duration  time.Duration `json:"duration_ns"`
}

// Refresher runs fetch -> aggregate -> upsert. Concurrent refreshes of the
// same item set share one run.
type Refresher struct {
	cfg    *config.Config
	source HistorySource
	agg    *Aggregator
	store  StatsStore
	group  singleflight.Group

	mu   sync.Mutex
	last *RefreshSummary
}

// NewRefresher wires a history refresher.
func NewRefresher(cfg *config.Config, source HistorySource, agg *Aggregator, store StatsStore) *Refresher {
	return &Refresher{cfg: cfg, source: source, agg: agg, store: store}
}

// Refresh updates the stored stats of itemIDs. Partial failures are logged by
// the stages; the returned error is only the context error. The shared run
// does not inherit ctx's cancellation, so one caller giving up does not cut
// short the others; that caller just stops waiting.
func (r *Refresher) Refresh(ctx context.Context, itemIDs []string) (RefreshSummary, error) {
	if err := ctx.Err(); err != nil {
		return RefreshSummary{}, err
	}
	ch := r.group.DoChan(strings.Join(itemIDs, ","), func() (interface{}, error) {
		return r.run(context.WithoutCancel(ctx), itemIDs)
	})
	select {
	case <-ctx.Done():
		return RefreshSummary{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Printf("[HISTORY] joined an in-flight refresh")
		}
		return res.Val.(RefreshSummary), res.Err
	}
}

func (r *Refresher) run(ctx context.Context, itemIDs []string) (RefreshSummary, error) {
	sum := RefreshSummary{RunID: uuid.NewString(), StartedAt: time.Now().UTC(), Items: len(itemIDs)}
	log.Printf("[HISTORY] run %s: fetching %d items", sum.RunID[:8], len(itemIDs))

	records := r.source.FetchHistory(ctx, itemIDs, r.cfg.History.TimeScale)
	sum.Records = len(records)
	if err := ctx.Err(); err != nil {
		sum.Duration = time.Since(sum.StartedAt)
		return sum, err
	}

	stats := r.agg.Aggregate(records)
	sum.Stats = len(stats)
	if len(stats) > 0 {
		sum.Written = r.store.UpsertStats(stats)
	} else {
		log.Printf("[HISTORY] run %s: no valid aggregated statistics", sum.RunID[:8])
	}
	sum.Duration = time.Since(sum.StartedAt)
	log.Printf("[HISTORY] run %s: %d records, %d stats, %d written in %v",
		sum.RunID[:8], sum.Records, sum.Stats, sum.Written, sum.Duration.Round(time.Millisecond))

	if rec, ok := r.store.(RunRecorder); ok {
		rec.RecordRun(sum)
	}
	r.mu.Lock()
	r.last = &sum
	r.mu.Unlock()
	return sum, nil
}

// Last returns the most recent completed run.
func (r *Refresher) Last() (RefreshSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return RefreshSummary{}, false
	}
	return *r.last, true
}
