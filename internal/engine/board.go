package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/millelog/albion-market-tools/internal/aodp"
)

var (
	ErrStaleSnapshot   = errors.New("snapshot id does not match the current board")
	ErrUnknownLocation = errors.New("unknown location")
	ErrIndexOutOfRange = errors.New("opportunity index out of range")
	ErrInvalidField    = errors.New("field must be buy_price or sell_price")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrNoSnapshot      = errors.New("board has no snapshot yet")
)

const marketStatsTop = 10

// Board owns the current opportunities of every location. Mutations go through
// validated accessors and each one issues a new snapshot id, so a client
// holding an outdated id cannot edit a list it has not seen.
type Board struct {
	mu        sync.RWMutex
	engine    *Engine
	locations []string
	id        string
	updatedAt time.Time
	byLoc     map[string][]FlipOpportunity
}

// BoardSnapshot is a copy of the board at one point in time.
type BoardSnapshot struct {
	ID            string                       `json:"snapshot_id"`
	UpdatedAt     time.Time                    `json:"updated_at"`
	Opportunities map[string][]FlipOpportunity `json:"opportunities"`
}

// MarketStats summarises the board.
type MarketStats struct {
	SnapshotID         string            `json:"snapshot_id"`
	TotalOpportunities int               `json:"total_opportunities"`
	ByLocation         map[string]int    `json:"opportunities_by_city"`
	TopProfit          []FlipOpportunity `json:"top_profit_items"`
	TopROI             []FlipOpportunity `json:"top_roi_items"`
}

// NewBoard creates an empty board for the given locations. engine recomputes
// metrics on price edits.
func NewBoard(engine *Engine, locations []string) *Board {
	byLoc := make(map[string][]FlipOpportunity, len(locations))
	for _, l := range locations {
		byLoc[l] = []FlipOpportunity{}
	}
	return &Board{
		engine:    engine,
		locations: append([]string(nil), locations...),
		byLoc:     byLoc,
	}
}

// Replace installs a fresh analysis result and returns the new snapshot id.
// Configured locations missing from results become empty lists.
func (b *Board) Replace(results map[string][]FlipOpportunity) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	byLoc := make(map[string][]FlipOpportunity, len(b.locations))
	for _, l := range b.locations {
		byLoc[l] = append([]FlipOpportunity{}, results[l]...)
	}
	b.byLoc = byLoc
	return b.bumpLocked()
}

func (b *Board) bumpLocked() string {
	b.id = uuid.NewString()
	b.updatedAt = time.Now().UTC()
	return b.id
}

// SnapshotID returns the current snapshot id, empty before the first Replace.
func (b *Board) SnapshotID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// Snapshot returns a deep copy of the board.
func (b *Board) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := BoardSnapshot{
		ID:            b.id,
		UpdatedAt:     b.updatedAt,
		Opportunities: make(map[string][]FlipOpportunity, len(b.byLoc)),
	}
	for l, ops := range b.byLoc {
		out.Opportunities[l] = append([]FlipOpportunity{}, ops...)
	}
	return out
}

// Location returns a copy of one location's opportunities.
func (b *Board) Location(loc string) ([]FlipOpportunity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ops, ok := b.byLoc[loc]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, loc)
	}
	return append([]FlipOpportunity{}, ops...), nil
}

func (b *Board) checkLocked(snapshotID, loc string, index int) error {
	if b.id == "" {
		return ErrNoSnapshot
	}
	if snapshotID != b.id {
		return ErrStaleSnapshot
	}
	ops, ok := b.byLoc[loc]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLocation, loc)
	}
	if index < 0 || index >= len(ops) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(ops))
	}
	return nil
}

// Delete removes one opportunity and returns the new snapshot id.
func (b *Board) Delete(snapshotID, loc string, index int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(snapshotID, loc, index); err != nil {
		return "", err
	}
	b.byLoc[loc] = removeAt(b.byLoc[loc], index)
	return b.bumpLocked(), nil
}

// UpdatePrice overrides the buy or sell price of one opportunity and
// recomputes its metrics. When the edited entry no longer qualifies it is
// removed and the returned opportunity is nil.
func (b *Board) UpdatePrice(snapshotID, loc string, index int, field string, value float64) (string, *FlipOpportunity, error) {
	if field != "buy_price" && field != "sell_price" {
		return "", nil, ErrInvalidField
	}
	// Prices are whole silver; anything rounding to zero is rejected.
	if !(math.RoundToEven(value) > 0) {
		return "", nil, ErrInvalidPrice
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(snapshotID, loc, index); err != nil {
		return "", nil, err
	}

	cur := b.byLoc[loc][index]
	q := aodp.Quote{
		ItemID:           cur.ItemID,
		City:             loc,
		Quality:          cur.Quality,
		BuyPriceMax:      float64(cur.BuyPrice),
		SellPriceMin:     float64(cur.SellPrice),
		SellPriceMinDate: cur.Timestamp,
	}
	if field == "buy_price" {
		q.BuyPriceMax = value
	} else {
		q.SellPriceMin = value
	}
	s := HistoricalStat{
		Location:     loc,
		ItemID:       cur.ItemID,
		ItemName:     cur.ItemName,
		Quality:      cur.Quality,
		AvgItemCount: cur.AvgItemCount,
		AvgPrice:     cur.AvgPrice,
	}

	opp, ok := b.engine.Calculate(s, q)
	if !ok {
		b.byLoc[loc] = removeAt(b.byLoc[loc], index)
		return b.bumpLocked(), nil, nil
	}
	b.byLoc[loc][index] = opp
	return b.bumpLocked(), &opp, nil
}

func removeAt(ops []FlipOpportunity, i int) []FlipOpportunity {
	out := make([]FlipOpportunity, 0, len(ops)-1)
	out = append(out, ops[:i]...)
	return append(out, ops[i+1:]...)
}

// Stats returns totals per location and the top entries across locations by
// profit and by ROI.
func (b *Board) Stats() MarketStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := MarketStats{SnapshotID: b.id, ByLocation: make(map[string]int, len(b.byLoc))}
	var all []FlipOpportunity
	for _, l := range b.locations {
		ops := b.byLoc[l]
		st.ByLocation[l] = len(ops)
		st.TotalOpportunities += len(ops)
		all = append(all, ops...)
	}

	st.TopProfit = topN(all, SortByProfit)
	st.TopROI = topN(all, SortByROI)
	return st
}

func topN(all []FlipOpportunity, key SortKey) []FlipOpportunity {
	ops := append([]FlipOpportunity{}, all...)
	SortBy(ops, key)
	if len(ops) > marketStatsTop {
		ops = ops[:marketStatsTop]
	}
	return ops
}

// Locations returns the configured locations, sorted.
func (b *Board) Locations() []string {
	out := append([]string(nil), b.locations...)
	sort.Strings(out)
	return out
}
