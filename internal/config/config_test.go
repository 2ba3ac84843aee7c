package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.MaxURLLength != 4096 {
		t.Errorf("MaxURLLength = %v, want 4096", c.MaxURLLength)
	}
	if c.RateLimit.ShortRequests != 180 || c.RateLimit.LongRequests != 300 {
		t.Errorf("RateLimit = %+v, want 180/300", c.RateLimit)
	}
	if c.RateLimit.ShortWindow() != time.Minute || c.RateLimit.LongWindow() != 5*time.Minute {
		t.Errorf("windows = %v/%v, want 1m/5m", c.RateLimit.ShortWindow(), c.RateLimit.LongWindow())
	}
	if c.Flip.SetupFeeRate != 0.025 || c.Flip.PremiumTaxRate != 0.04 {
		t.Errorf("fees = %v/%v, want 0.025/0.04", c.Flip.SetupFeeRate, c.Flip.PremiumTaxRate)
	}
	if c.Flip.PriceAdjustments != 1 {
		t.Errorf("PriceAdjustments = %v, want 1", c.Flip.PriceAdjustments)
	}
	if c.BaseURL() != "https://west.albion-online-data.com" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestQualityMultiplier(t *testing.T) {
	c := Default()
	cases := map[int]float64{1: 1.0, 2: 0.40, 5: 0.05, 0: 0, 6: 0, -1: 0}
	for q, want := range cases {
		if got := c.QualityMultiplier(q); got != want {
			t.Errorf("QualityMultiplier(%d) = %v, want %v", q, got, want)
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c *Config)
	}{
		{"unknown region", func(c *Config) { c.Region = "Mars" }},
		{"no items placeholder", func(c *Config) { c.Endpoints.Prices = "/api/prices" }},
		{"zero url length", func(c *Config) { c.MaxURLLength = 0 }},
		{"long window not longer", func(c *Config) { c.RateLimit.LongWindowSeconds = 60 }},
		{"no locations", func(c *Config) { c.Locations = nil }},
		{"zero min points", func(c *Config) { c.History.MinDataPoints = 0 }},
		{"capture above one", func(c *Config) { c.Flip.VolumeCaptureRate = 1.5 }},
		{"short quality table", func(c *Config) { c.Flip.QualityVolume = []float64{1} }},
		{"negative share", func(c *Config) { c.Flip.QualityVolume[2] = -0.1 }},
	}
	for _, tc := range cases {
		c := Default()
		tc.mut(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tc.name)
		}
	}
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flipper.toml")
	body := `
region = "Europe"
locations = ["Martlock", "Bridgewatch"]
max_url_length = 2048

[flip]
min_profit = 5000
quality_volume = [1.0, 0.5, 0.2, 0.1, 0.05]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Region != "Europe" || c.BaseURL() != "https://europe.albion-online-data.com" {
		t.Errorf("Region/BaseURL = %q/%q", c.Region, c.BaseURL())
	}
	if len(c.Locations) != 2 || c.Locations[0] != "Martlock" {
		t.Errorf("Locations = %v", c.Locations)
	}
	if c.MaxURLLength != 2048 {
		t.Errorf("MaxURLLength = %d, want 2048", c.MaxURLLength)
	}
	if c.Flip.MinProfit != 5000 || c.QualityMultiplier(2) != 0.5 {
		t.Errorf("Flip = %+v", c.Flip)
	}
	// Untouched sections keep their defaults.
	if c.Flip.SetupFeeRate != 0.025 || c.RateLimit.ShortRequests != 180 {
		t.Errorf("defaults lost: setup=%v short=%d", c.Flip.SetupFeeRate, c.RateLimit.ShortRequests)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load(missing) = nil error, want error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FLIPPER_REGION":     "Asia",
		"FLIPPER_LOCATIONS":  " Caerleon , Thetford ,",
		"FLIPPER_MIN_PROFIT": "2500",
	}
	c := Default()
	if err := c.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if c.Region != "Asia" {
		t.Errorf("Region = %q, want Asia", c.Region)
	}
	if len(c.Locations) != 2 || c.Locations[0] != "Caerleon" || c.Locations[1] != "Thetford" {
		t.Errorf("Locations = %q", c.Locations)
	}
	if c.Flip.MinProfit != 2500 {
		t.Errorf("MinProfit = %v, want 2500", c.Flip.MinProfit)
	}
	if !c.HasLocation("Thetford") || c.HasLocation("Lymhurst") {
		t.Errorf("HasLocation mismatch for %v", c.Locations)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	c := Default()
	err := c.applyEnv(func(k string) string {
		if k == "FLIPPER_QUOTE_CACHE_MINUTES" {
			return "soon"
		}
		return ""
	})
	if err == nil {
		t.Error("applyEnv with bad number = nil, want error")
	}
}
