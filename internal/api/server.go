package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/millelog/albion-market-tools/internal/catalog"
	"github.com/millelog/albion-market-tools/internal/config"
	"github.com/millelog/albion-market-tools/internal/engine"
)

// Store is the part of the market store the API reads directly.
type Store interface {
	StatsCount() (map[string]int, error)
	RecentRuns(limit int) []engine.RefreshSummary
}

// QuoteCache is implemented by quote sources that cache results.
type QuoteCache interface {
	PurgeQuotes()
}

// Server is the HTTP API over the analyzer, the opportunity board and the
// history refresher.
type Server struct {
	cfg       *config.Config
	store     Store
	analyzer  *engine.Analyzer
	board     *engine.Board
	refresher *engine.Refresher
	catalog   *catalog.Catalog
	quotes    QuoteCache // optional

	// Board refreshes run one at a time.
	pipeline sync.Mutex
}

// NewServer creates a Server.
func NewServer(cfg *config.Config, store Store, analyzer *engine.Analyzer, board *engine.Board, refresher *engine.Refresher, cat *catalog.Catalog) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		analyzer:  analyzer,
		board:     board,
		refresher: refresher,
		catalog:   cat,
	}
}

// SetQuoteCache registers a cache that is purged before every board refresh.
func (s *Server) SetQuoteCache(q QuoteCache) {
	s.quotes = q
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	mux.HandleFunc("GET /api/opportunities", s.handleGetOpportunities)
	mux.HandleFunc("POST /api/opportunities/refresh", s.handleRefreshOpportunities)
	mux.HandleFunc("POST /api/opportunities/delete", s.handleDeleteOpportunity)
	mux.HandleFunc("POST /api/opportunities/update", s.handleUpdateOpportunity)
	mux.HandleFunc("GET /api/market-stats", s.handleMarketStats)

	mux.HandleFunc("POST /api/history/refresh", s.handleRefreshHistory)
	mux.HandleFunc("GET /api/top-items/{location}", s.handleTopItems)
	mux.HandleFunc("GET /api/flip-analysis/{location}", s.handleFlipAnalysis)
	mux.HandleFunc("GET /api/items/search", s.handleItemSearch)
	mux.HandleFunc("GET /api/items/{itemID}/stats", s.handleItemStats)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeBoardError maps board validation errors to HTTP status codes.
func writeBoardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrStaleSnapshot), errors.Is(err, engine.ErrNoSnapshot):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrUnknownLocation),
		errors.Is(err, engine.ErrIndexOutOfRange),
		errors.Is(err, engine.ErrInvalidField),
		errors.Is(err, engine.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[API] board: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// intParam reads a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.StatsCount()
	if err != nil {
		log.Printf("[API] status: %v", err)
		counts = map[string]int{}
	}

	result := map[string]interface{}{
		"region":            s.cfg.Region,
		"locations":         s.cfg.Locations,
		"stats_by_location": counts,
		"catalog_items":     s.catalog.Len(),
		"snapshot_id":       s.board.SnapshotID(),
		"recent_runs":       s.store.RecentRuns(5),
	}
	if last, ok := s.refresher.Last(); ok {
		result["last_refresh"] = last
	}
	writeJSON(w, result)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg)
}
