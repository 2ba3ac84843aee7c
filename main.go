package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/millelog/albion-market-tools/internal/aodp"
	"github.com/millelog/albion-market-tools/internal/api"
	"github.com/millelog/albion-market-tools/internal/catalog"
	"github.com/millelog/albion-market-tools/internal/config"
	"github.com/millelog/albion-market-tools/internal/db"
	"github.com/millelog/albion-market-tools/internal/engine"
	"github.com/millelog/albion-market-tools/internal/logger"
	"github.com/millelog/albion-market-tools/internal/report"
)

var version = "dev"

const maintenanceInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "TOML config file")
	region := flag.String("region", "", "pricing API region (Americas, Asia, Europe)")
	refreshHistory := flag.Bool("refresh-history", false, "fetch and store history for the whole catalog before analysis")
	seed := flag.String("seed", "db", "candidate source: db (stored stats) or popular (popular_items lists)")
	sortBy := flag.String("sort", "profit", "rank by profit or roi")
	xlsxPath := flag.String("xlsx", "", "also write results to this .xlsx file")
	serve := flag.Bool("serve", false, "run the HTTP API and maintenance loop")
	port := flag.Int("port", 13370, "HTTP server port")
	flag.Parse()

	logger.Banner(version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Config", err.Error())
		os.Exit(1)
	}
	if *region != "" {
		cfg.Region = *region
		if err := cfg.Validate(); err != nil {
			logger.Error("Config", err.Error())
			os.Exit(1)
		}
	}
	if *seed != "db" && *seed != "popular" {
		logger.Error("Config", fmt.Sprintf("unknown seed %q (want db or popular)", *seed))
		os.Exit(2)
	}
	key := engine.ParseSortKey(*sortBy)

	database, err := db.Open(cfg.DBPath, cfg.History.MinDataPoints)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Warn("CATALOG", fmt.Sprintf("%v; item names will be empty", err))
		cat = catalog.New(nil)
	}

	client := aodp.NewClient(cfg)
	logger.Info("AODP", fmt.Sprintf("Region %s (%s)", cfg.Region, client.BaseURL()))

	eng := engine.NewEngine(cfg, client)
	analyzer := engine.NewAnalyzer(cfg, database, eng)
	refresher := engine.NewRefresher(cfg, client, engine.NewAggregator(cfg.History, cat), database)
	board := engine.NewBoard(eng, cfg.Locations)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *refreshHistory {
		sum, err := refresher.Refresh(ctx, cat.IDs())
		if err != nil {
			logger.Error("HISTORY", err.Error())
			os.Exit(1)
		}
		logger.Success("HISTORY", fmt.Sprintf("%d stats written in %v", sum.Written, sum.Duration.Round(time.Millisecond)))
	}

	if *serve {
		srv := api.NewServer(cfg, database, analyzer, board, refresher, cat)
		srv.SetQuoteCache(client)
		if err := runServer(ctx, srv, database, refresher, cfg, *port); err != nil {
			logger.Error("Server", fmt.Sprintf("Failed: %v", err))
			os.Exit(1)
		}
		return
	}

	var results map[string][]engine.FlipOpportunity
	if *seed == "popular" {
		results = analyzer.AnalyzeCandidates(ctx, catalog.PopularCandidates(cfg.PopularItemsDir, cfg.Locations, cat), key)
	} else {
		results = analyzer.AnalyzeAll(ctx, key)
	}
	board.Replace(results)
	for _, loc := range board.Locations() {
		ops, _ := board.Location(loc)
		printTable(os.Stdout, loc, ops)
	}

	if *xlsxPath != "" {
		if err := report.WriteXLSX(*xlsxPath, board.Snapshot().Opportunities); err != nil {
			logger.Error("XLSX", err.Error())
			os.Exit(1)
		}
		logger.Success("XLSX", fmt.Sprintf("Wrote %s", *xlsxPath))
	}
}

// runServer serves the API and runs the maintenance loop until ctx is done.
func runServer(ctx context.Context, srv *api.Server, database *db.DB, refresher *engine.Refresher, cfg *config.Config, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Server(addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server", "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			maintain(gctx, database, refresher, cfg)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

// maintain drops rows past retention and refreshes stale ones.
func maintain(ctx context.Context, database *db.DB, refresher *engine.Refresher, cfg *config.Config) {
	if _, err := database.PurgeOlderThan(cfg.History.MaxDays); err != nil {
		logger.Warn("MAINT", err.Error())
	}
	ids, err := database.StaleItemIDs(cfg.History.StaleHours)
	if err != nil {
		logger.Warn("MAINT", err.Error())
		return
	}
	if len(ids) == 0 {
		return
	}
	logger.Info("MAINT", fmt.Sprintf("Refreshing %d stale items", len(ids)))
	if _, err := refresher.Refresh(ctx, ids); err != nil && ctx.Err() == nil {
		logger.Warn("MAINT", err.Error())
	}
}

func printTable(w io.Writer, location string, ops []engine.FlipOpportunity) {
	fmt.Fprintf(w, "\nLocation: %s\n", location)
	fmt.Fprintf(w, "%-40s | %8s | %8s | %8s | %12s | %12s\n", "Item Name", "Margin", "Volume", "ROI %", "Profit/day", "Investment")
	fmt.Fprintln(w, strings.Repeat("-", 103))
	for _, o := range ops {
		name := o.ItemName
		if name == "" {
			name = o.ItemID
		}
		if o.Quality > 1 {
			name = fmt.Sprintf("%s (q%d)", name, o.Quality)
		}
		fmt.Fprintf(w, "%-40s | %8s | %8s | %8.1f | %12s | %12s\n",
			truncate(name, 40),
			humanize.Comma(o.FlipMargin),
			humanize.Comma(o.ExpectedVolume),
			o.ROIPercent,
			humanize.Comma(o.PotentialProfit),
			humanize.Comma(o.TotalInvestment),
		)
	}
	if len(ops) == 0 {
		fmt.Fprintln(w, "(no opportunities)")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
