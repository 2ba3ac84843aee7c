package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/millelog/albion-market-tools/internal/catalog"
	"github.com/millelog/albion-market-tools/internal/engine"
)

type deleteRequest struct {
	SnapshotID string `json:"snapshot_id"`
	City       string `json:"city"`
	ItemIndex  int    `json:"itemIndex"`
}

type updateRequest struct {
	SnapshotID string  `json:"snapshot_id"`
	City       string  `json:"city"`
	ItemIndex  int     `json:"itemIndex"`
	Field      string  `json:"field"`
	Value      float64 `json:"value"`
}

func (s *Server) handleGetOpportunities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.board.Snapshot())
}

// handleRefreshOpportunities re-runs the analysis and installs the result on
// the board.
// POST /api/opportunities/refresh?sort=profit|roi&seed=db|popular
func (s *Server) handleRefreshOpportunities(w http.ResponseWriter, r *http.Request) {
	key := engine.ParseSortKey(r.URL.Query().Get("sort"))
	seed := r.URL.Query().Get("seed")
	if seed != "" && seed != "db" && seed != "popular" {
		writeError(w, http.StatusBadRequest, "seed must be db or popular")
		return
	}
	if !s.pipeline.TryLock() {
		writeError(w, http.StatusConflict, "refresh already running")
		return
	}
	defer s.pipeline.Unlock()

	if s.quotes != nil {
		s.quotes.PurgeQuotes()
	}
	var results map[string][]engine.FlipOpportunity
	if seed == "popular" {
		cands := catalog.PopularCandidates(s.cfg.PopularItemsDir, s.cfg.Locations, s.catalog)
		results = s.analyzer.AnalyzeCandidates(r.Context(), cands, key)
	} else {
		results = s.analyzer.AnalyzeAll(r.Context(), key)
	}
	id := s.board.Replace(results)
	log.Printf("[API] Board refreshed: snapshot %s (seed=%s, sort=%s)", id[:8], seedOrDefault(seed), key)
	writeJSON(w, s.board.Snapshot())
}

func seedOrDefault(seed string) string {
	if seed == "" {
		return "db"
	}
	return seed
}

func (s *Server) handleDeleteOpportunity(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	id, err := s.board.Delete(req.SnapshotID, req.City, req.ItemIndex)
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success", "snapshot_id": id})
}

func (s *Server) handleUpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	id, opp, err := s.board.UpdatePrice(req.SnapshotID, req.City, req.ItemIndex, req.Field, req.Value)
	if err != nil {
		writeBoardError(w, err)
		return
	}
	if opp == nil {
		writeJSON(w, map[string]interface{}{
			"status":      "filtered",
			"message":     "Item removed due to not meeting criteria",
			"snapshot_id": id,
		})
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success", "snapshot_id": id, "opportunity": opp})
}

func (s *Server) handleMarketStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.board.Stats())
}
