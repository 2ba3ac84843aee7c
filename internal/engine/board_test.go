package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/millelog/albion-market-tools/internal/aodp"
)

func quote(id string, buy, sell float64) aodp.Quote {
	return aodp.Quote{ItemID: id, Quality: 1, BuyPriceMax: buy, SellPriceMin: sell}
}

func newTestBoard(t *testing.T) (*Board, string) {
	t.Helper()
	b := NewBoard(NewEngine(testConfig(), nil), []string{"Lymhurst", "Fort Sterling"})
	e := b.engine
	mk := func(id string, buy, sell float64) FlipOpportunity {
		opp, ok := e.Calculate(
			HistoricalStat{Location: "Lymhurst", ItemID: id, Quality: 1, AvgItemCount: 10000, AvgPrice: 1100},
			quote(id, buy, sell),
		)
		if !ok {
			t.Fatalf("fixture %s not profitable", id)
		}
		return opp
	}
	id := b.Replace(map[string][]FlipOpportunity{
		"Lymhurst": {mk("A", 1000, 1200), mk("B", 100, 300)},
	})
	return b, id
}

func TestBoard_ReplaceAndSnapshot(t *testing.T) {
	b, id := newTestBoard(t)
	if id == "" || b.SnapshotID() != id {
		t.Fatalf("snapshot id = %q / %q", id, b.SnapshotID())
	}
	snap := b.Snapshot()
	if len(snap.Opportunities["Lymhurst"]) != 2 {
		t.Errorf("Lymhurst = %d entries, want 2", len(snap.Opportunities["Lymhurst"]))
	}
	if ops, ok := snap.Opportunities["Fort Sterling"]; !ok || len(ops) != 0 {
		t.Errorf("Fort Sterling = %v, %v; want present and empty", ops, ok)
	}

	// Mutating the copy leaves the board untouched.
	snap.Opportunities["Lymhurst"][0].BuyPrice = 1
	ops, _ := b.Location("Lymhurst")
	if ops[0].BuyPrice == 1 {
		t.Error("Snapshot shares memory with the board")
	}
}

func TestBoard_DeleteValidation(t *testing.T) {
	b, id := newTestBoard(t)

	if _, err := b.Delete("old", "Lymhurst", 0); !errors.Is(err, ErrStaleSnapshot) {
		t.Errorf("stale id: err = %v, want ErrStaleSnapshot", err)
	}
	if _, err := b.Delete(id, "Caerleon", 0); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("unknown location: err = %v, want ErrUnknownLocation", err)
	}
	if _, err := b.Delete(id, "Lymhurst", 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("index 2: err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := b.Delete(id, "Lymhurst", -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("index -1: err = %v, want ErrIndexOutOfRange", err)
	}

	next, err := b.Delete(id, "Lymhurst", 0)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if next == id {
		t.Error("Delete kept the snapshot id, want a new one")
	}
	ops, _ := b.Location("Lymhurst")
	if len(ops) != 1 || ops[0].ItemID != "B" {
		t.Errorf("after delete = %v, want only B", ops)
	}
	if _, err := b.Delete(id, "Lymhurst", 0); !errors.Is(err, ErrStaleSnapshot) {
		t.Errorf("reusing old id: err = %v, want ErrStaleSnapshot", err)
	}
}

func TestBoard_EmptyBoardRejectsEdits(t *testing.T) {
	b := NewBoard(NewEngine(testConfig(), nil), []string{"Lymhurst"})
	if _, err := b.Delete("", "Lymhurst", 0); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestBoard_UpdatePrice(t *testing.T) {
	b, id := newTestBoard(t)

	if _, _, err := b.UpdatePrice(id, "Lymhurst", 0, "avg_price", 10); !errors.Is(err, ErrInvalidField) {
		t.Errorf("bad field: err = %v, want ErrInvalidField", err)
	}
	if _, _, err := b.UpdatePrice(id, "Lymhurst", 0, "buy_price", 0); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero price: err = %v, want ErrInvalidPrice", err)
	}
	if _, _, err := b.UpdatePrice(id, "Lymhurst", 0, "sell_price", 0.4); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("sub-silver price: err = %v, want ErrInvalidPrice", err)
	}

	id2, opp, err := b.UpdatePrice(id, "Lymhurst", 0, "sell_price", 2000)
	if err != nil || opp == nil {
		t.Fatalf("UpdatePrice = %v, %v", opp, err)
	}
	if opp.SellPrice != 2000 || opp.FlipMargin != 770 || opp.BuyPrice != 1000 {
		t.Errorf("recomputed = sell %d margin %d buy %d, want 2000/770/1000", opp.SellPrice, opp.FlipMargin, opp.BuyPrice)
	}
	ops, _ := b.Location("Lymhurst")
	if ops[0].FlipMargin != 770 {
		t.Errorf("board entry margin = %d, want 770", ops[0].FlipMargin)
	}

	// A buy price above the sell price leaves no margin: the entry is dropped.
	_, opp, err = b.UpdatePrice(id2, "Lymhurst", 1, "buy_price", 500)
	if err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}
	if opp != nil {
		t.Errorf("opp = %+v, want nil for unprofitable entry", opp)
	}
	ops, _ = b.Location("Lymhurst")
	if len(ops) != 1 || ops[0].ItemID != "A" {
		t.Errorf("after filtered update = %v, want only A", ops)
	}
}

func TestBoard_Stats(t *testing.T) {
	b := NewBoard(NewEngine(testConfig(), nil), []string{"Lymhurst", "Fort Sterling"})
	var lym, fs []FlipOpportunity
	for i := 0; i < 8; i++ {
		lym = append(lym, FlipOpportunity{ItemID: fmt.Sprintf("L%d", i), PotentialProfit: int64(100 * i), ROIPercent: float64(20 - i)})
		fs = append(fs, FlipOpportunity{ItemID: fmt.Sprintf("F%d", i), PotentialProfit: int64(100*i + 50), ROIPercent: float64(i)})
	}
	b.Replace(map[string][]FlipOpportunity{"Lymhurst": lym, "Fort Sterling": fs})

	st := b.Stats()
	if st.TotalOpportunities != 16 || st.ByLocation["Lymhurst"] != 8 || st.ByLocation["Fort Sterling"] != 8 {
		t.Errorf("totals = %d %v", st.TotalOpportunities, st.ByLocation)
	}
	if len(st.TopProfit) != 10 || st.TopProfit[0].ItemID != "F7" {
		t.Errorf("TopProfit = %d entries, first %s; want 10, F7", len(st.TopProfit), st.TopProfit[0].ItemID)
	}
	if len(st.TopROI) != 10 || st.TopROI[0].ItemID != "L0" {
		t.Errorf("TopROI first = %s, want L0", st.TopROI[0].ItemID)
	}
}
