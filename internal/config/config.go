package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Endpoints holds the pricing API path templates. Placeholders: {items}, {locations}, {time_scale}.
type Endpoints struct {
	Prices  string `toml:"prices" json:"prices"`
	History string `toml:"history" json:"history"`
}

// RateLimit describes the two sliding-window request quotas of the pricing API.
type RateLimit struct {
	ShortRequests      int `toml:"short_requests" json:"short_requests"`
	ShortWindowSeconds int `toml:"short_window_seconds" json:"short_window_seconds"`
	LongRequests       int `toml:"long_requests" json:"long_requests"`
	LongWindowSeconds  int `toml:"long_window_seconds" json:"long_window_seconds"`
}

// ShortWindow returns the short window as a duration.
func (r RateLimit) ShortWindow() time.Duration {
	return time.Duration(r.ShortWindowSeconds) * time.Second
}

// LongWindow returns the long window as a duration.
func (r RateLimit) LongWindow() time.Duration {
	return time.Duration(r.LongWindowSeconds) * time.Second
}

// History controls aggregation and retention of historical statistics.
type History struct {
	MaxDays       int `toml:"max_days" json:"max_days"`             // retention window for points and rows
	MinDataPoints int `toml:"min_data_points" json:"min_data_points"` // samples required per stat
	TimeScale     int `toml:"time_scale" json:"time_scale"`         // 1 = hourly, 6, 24 = daily
	StaleHours    int `toml:"stale_hours" json:"stale_hours"`       // rows older than this get refreshed
}

// Flip holds the fee model and ranking knobs of the flip engine.
type Flip struct {
	MinProfit           float64 `toml:"min_profit" json:"min_profit"`
	ItemsToAnalyze      int     `toml:"items_to_analyze" json:"items_to_analyze"`
	OpportunitiesToShow int     `toml:"opportunities_to_show" json:"opportunities_to_show"`
	SetupFeeRate        float64 `toml:"setup_fee_rate" json:"setup_fee_rate"`
	PremiumTaxRate      float64 `toml:"premium_tax_rate" json:"premium_tax_rate"`
	PriceAdjustments    int     `toml:"price_adjustments" json:"price_adjustments"`
	VolumeCaptureRate   float64 `toml:"volume_capture_rate" json:"volume_capture_rate"`
	// QualityVolume[q-1] is the share of total volume traded at quality q.
	QualityVolume []float64 `toml:"quality_volume" json:"quality_volume"`
}

// Config holds application settings. It is built once at startup by Load
// and passed by pointer to constructors; nothing mutates it afterwards.
type Config struct {
	Region             string            `toml:"region" json:"region"`
	Hosts              map[string]string `toml:"hosts" json:"hosts"`
	Endpoints          Endpoints         `toml:"endpoints" json:"endpoints"`
	MaxURLLength       int               `toml:"max_url_length" json:"max_url_length"`
	HTTPTimeoutSeconds int               `toml:"http_timeout_seconds" json:"http_timeout_seconds"`
	RateLimit          RateLimit         `toml:"rate_limit" json:"rate_limit"`
	Locations          []string          `toml:"locations" json:"locations"`
	QuoteCacheMinutes  int               `toml:"quote_cache_minutes" json:"quote_cache_minutes"`

	DBPath          string `toml:"db_path" json:"db_path"`
	CatalogPath     string `toml:"catalog_path" json:"catalog_path"`
	PopularItemsDir string `toml:"popular_items_dir" json:"popular_items_dir"`

	History History `toml:"history" json:"history"`
	Flip    Flip    `toml:"flip" json:"flip"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Region: "Americas",
		Hosts: map[string]string{
			"Americas": "https://west.albion-online-data.com",
			"Asia":     "https://east.albion-online-data.com",
			"Europe":   "https://europe.albion-online-data.com",
		},
		Endpoints: Endpoints{
			Prices:  "/api/v2/stats/prices/{items}.json?locations={locations}",
			History: "/api/v2/stats/history/{items}.json?locations={locations}&time-scale={time_scale}",
		},
		MaxURLLength:       4096,
		HTTPTimeoutSeconds: 30,
		RateLimit: RateLimit{
			ShortRequests:      180,
			ShortWindowSeconds: 60,
			LongRequests:       300,
			LongWindowSeconds:  300,
		},
		Locations:         []string{"Lymhurst", "Fort Sterling"},
		QuoteCacheMinutes: 15,
		DBPath:            "data/market.db",
		CatalogPath:       "ids/items.json",
		PopularItemsDir:   "popular_items",
		History: History{
			MaxDays:       28,
			MinDataPoints: 5,
			TimeScale:     24,
			StaleHours:    24,
		},
		Flip: Flip{
			MinProfit:           10000,
			ItemsToAnalyze:      100,
			OpportunitiesToShow: 20,
			SetupFeeRate:        0.025,
			PremiumTaxRate:      0.04,
			PriceAdjustments:    1,
			VolumeCaptureRate:   0.02,
			QualityVolume:       []float64{1.0, 0.40, 0.25, 0.10, 0.05},
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if any),
// then a .env file and FLIPPER_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		err = toml.NewDecoder(f).Decode(cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	// A missing .env is normal; only real variables matter.
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FLIPPER_REGION"); v != "" {
		c.Region = v
	}
	if v := getenv("FLIPPER_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := getenv("FLIPPER_CATALOG_PATH"); v != "" {
		c.CatalogPath = v
	}
	if v := getenv("FLIPPER_POPULAR_DIR"); v != "" {
		c.PopularItemsDir = v
	}
	if v := getenv("FLIPPER_LOCATIONS"); v != "" {
		var locs []string
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				locs = append(locs, l)
			}
		}
		c.Locations = locs
	}
	if v := getenv("FLIPPER_MIN_PROFIT"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FLIPPER_MIN_PROFIT: %w", err)
		}
		c.Flip.MinProfit = n
	}
	if v := getenv("FLIPPER_QUOTE_CACHE_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLIPPER_QUOTE_CACHE_MINUTES: %w", err)
		}
		c.QuoteCacheMinutes = n
	}
	return nil
}

// Validate reports the first inconsistency in the configuration.
func (c *Config) Validate() error {
	if _, ok := c.Hosts[c.Region]; !ok {
		return fmt.Errorf("unknown region %q (known: %s)", c.Region, strings.Join(c.Regions(), ", "))
	}
	if !strings.Contains(c.Endpoints.Prices, "{items}") || !strings.Contains(c.Endpoints.History, "{items}") {
		return errors.New("endpoint templates must contain {items}")
	}
	if c.MaxURLLength <= 0 {
		return errors.New("max_url_length must be positive")
	}
	rl := c.RateLimit
	if rl.ShortRequests <= 0 || rl.LongRequests <= 0 || rl.ShortWindowSeconds <= 0 || rl.LongWindowSeconds <= 0 {
		return errors.New("rate_limit thresholds and windows must be positive")
	}
	if rl.LongWindowSeconds <= rl.ShortWindowSeconds {
		return errors.New("rate_limit long window must be longer than the short window")
	}
	if len(c.Locations) == 0 {
		return errors.New("at least one location is required")
	}
	if c.History.MaxDays <= 0 || c.History.MinDataPoints <= 0 {
		return errors.New("history max_days and min_data_points must be positive")
	}
	if c.Flip.SetupFeeRate < 0 || c.Flip.PremiumTaxRate < 0 || c.Flip.PriceAdjustments < 0 {
		return errors.New("fee rates and price adjustments must not be negative")
	}
	if c.Flip.VolumeCaptureRate <= 0 || c.Flip.VolumeCaptureRate > 1 {
		return errors.New("volume_capture_rate must be in (0, 1]")
	}
	if len(c.Flip.QualityVolume) != 5 {
		return fmt.Errorf("quality_volume must have 5 entries, got %d", len(c.Flip.QualityVolume))
	}
	for i, share := range c.Flip.QualityVolume {
		if share < 0 || share > 1 {
			return fmt.Errorf("quality_volume[%d] = %v out of [0, 1]", i, share)
		}
	}
	return nil
}

// BaseURL returns the pricing API host of the configured region.
func (c *Config) BaseURL() string {
	return c.Hosts[c.Region]
}

// Regions returns the configured region names in sorted order.
func (c *Config) Regions() []string {
	out := make([]string, 0, len(c.Hosts))
	for r := range c.Hosts {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// HasLocation reports whether loc is one of the configured market locations.
func (c *Config) HasLocation(loc string) bool {
	for _, l := range c.Locations {
		if l == loc {
			return true
		}
	}
	return false
}

// QualityMultiplier returns the share of total volume traded at quality q (0 when unknown).
func (c *Config) QualityMultiplier(q int) float64 {
	if q < 1 || q > len(c.Flip.QualityVolume) {
		return 0
	}
	return c.Flip.QualityVolume[q-1]
}

// QuoteCacheTTL returns how long fetched quotes may be reused.
func (c *Config) QuoteCacheTTL() time.Duration {
	return time.Duration(c.QuoteCacheMinutes) * time.Minute
}

// HTTPTimeout returns the pricing API request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
