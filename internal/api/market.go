package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/millelog/albion-market-tools/internal/catalog"
	"github.com/millelog/albion-market-tools/internal/engine"
)

const (
	defaultTopItemsLimit = 50
	defaultSearchLimit   = 20
)

type historyRefreshRequest struct {
	Items []string `json:"items"`
}

// handleRefreshHistory fetches and stores fresh statistics for the requested
// items, or for the whole catalog when none are given.
// POST /api/history/refresh
// Body (optional): {"items": ["T4_BAG", "T5_CAPE@1"]}
func (s *Server) handleRefreshHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, 400, "invalid json")
		return
	}
	items := req.Items
	if len(items) == 0 {
		items = s.catalog.IDs()
	}
	if len(items) == 0 {
		writeError(w, 400, "no items to refresh")
		return
	}

	sum, err := s.refresher.Refresh(r.Context(), items)
	if err != nil {
		log.Printf("[API] history refresh: %v", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success", "summary": sum})
}

func (s *Server) location(w http.ResponseWriter, r *http.Request) (string, bool) {
	loc := r.PathValue("location")
	if !s.cfg.HasLocation(loc) {
		writeError(w, 400, fmt.Sprintf("invalid location: %s", loc))
		return "", false
	}
	return loc, true
}

// GET /api/top-items/{location}?limit=50&min_volume=10
func (s *Server) handleTopItems(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.location(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultTopItemsLimit)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var minVolume float64
	if v := r.URL.Query().Get("min_volume"); v != "" {
		minVolume, err = strconv.ParseFloat(v, 64)
		if err != nil || minVolume < 0 {
			writeError(w, 400, "invalid min_volume")
			return
		}
	}

	items := s.analyzer.TopItems(loc, limit, minVolume)
	if items == nil {
		items = []engine.HistoricalStat{}
	}
	writeJSON(w, map[string]interface{}{"location": loc, "items": items})
}

// GET /api/flip-analysis/{location}?limit=50&sort=profit|roi
func (s *Server) handleFlipAnalysis(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.location(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultTopItemsLimit)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	key := engine.ParseSortKey(r.URL.Query().Get("sort"))

	ops := s.analyzer.AnalyzeLocation(r.Context(), loc, limit, key)
	if ops == nil {
		ops = []engine.FlipOpportunity{}
	}
	writeJSON(w, map[string]interface{}{"location": loc, "opportunities": ops})
}

// GET /api/items/search?q=bag&limit=20
func (s *Server) handleItemSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, map[string]interface{}{"items": []catalog.Item{}})
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"items": s.catalog.Search(q, limit)})
}

// GET /api/items/{itemID}/stats?quality=1
func (s *Server) handleItemStats(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemID")
	quality, err := intParam(r, "quality", 1)
	if err != nil || quality < 1 {
		writeError(w, 400, "invalid quality")
		return
	}
	writeJSON(w, map[string]interface{}{
		"item_id":   itemID,
		"item_name": s.catalog.Name(itemID),
		"quality":   quality,
		"stats":     s.analyzer.ItemMarketStats(itemID, quality),
	})
}
