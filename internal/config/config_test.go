package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dcalab/internal/strategy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dca.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATA_DIR", "SQLITE_PATH", "ALPACA_DATA_URL", "LOG_LEVEL", "DCALAB_SOURCE", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Run.Start != "2005-01-01" {
		t.Errorf("Run.Start = %q, want %q", cfg.Run.Start, "2005-01-01")
	}
	if len(cfg.Run.Tickers) != 2 || cfg.Run.Tickers[0] != "SPY" || cfg.Run.Tickers[1] != "ACWI" {
		t.Errorf("Run.Tickers = %v, want [SPY ACWI]", cfg.Run.Tickers)
	}
	if cfg.Run.Weights[0] != 0.7 || cfg.Run.Weights[1] != 0.3 {
		t.Errorf("Run.Weights = %v, want [0.7 0.3]", cfg.Run.Weights)
	}
	if cfg.Run.Amount != 100 || cfg.Run.Window != 5 || cfg.Run.Threshold != 0.05 {
		t.Errorf("Run params = %+v", cfg.Run)
	}
	if cfg.Run.Mode != "fixed" || cfg.Run.Fixed != 50 || cfg.Run.K != 1000 {
		t.Errorf("Run payout = %q %v %v", cfg.Run.Mode, cfg.Run.Fixed, cfg.Run.K)
	}
	if cfg.Data.Source != "auto" {
		t.Errorf("Data.Source = %q, want auto", cfg.Data.Source)
	}
	if cfg.Output.Dir != "outputs" {
		t.Errorf("Output.Dir = %q, want outputs", cfg.Output.Dir)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
storage:
  data_dir: "/tmp/dcalab/data"
  sqlite_path: "/tmp/dcalab/runs.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "sip"
logging:
  level: "debug"
  format: "json"
data:
  source: "stooq"
  retries: 2
  retry_delay: 500ms
  rate_limit_per_min: 10
run:
  strategy: strat3
  start: "2010-01-01"
  end: "2020-12-31"
  tickers: [QQQ]
  weights: [1.0]
  threshold: 0.1
  mode: proportional
  k: 2000
sweep:
  thresholds: [0.05, 0.1, 0.2]
  workers: 8
output:
  dir: "results"
  trades_parquet: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/dcalab/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/dcalab/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/dcalab/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/dcalab/runs.db")
	}

	// -- Alpaca --
	if !cfg.Alpaca.Configured() || cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca = %+v", cfg.Alpaca)
	}

	// -- Data --
	if cfg.Data.Source != "stooq" || cfg.Data.Retries != 2 || cfg.Data.RateLimitPerMin != 10 {
		t.Errorf("Data = %+v", cfg.Data)
	}
	if cfg.Data.RetryDelay != 500*time.Millisecond {
		t.Errorf("Data.RetryDelay = %v, want 500ms", cfg.Data.RetryDelay)
	}

	// -- Run --
	if cfg.Run.Strategy != "strat3" || cfg.Run.Mode != "proportional" || cfg.Run.K != 2000 {
		t.Errorf("Run = %+v", cfg.Run)
	}
	if len(cfg.Run.Tickers) != 1 || cfg.Run.Tickers[0] != "QQQ" {
		t.Errorf("Run.Tickers = %v, want [QQQ]", cfg.Run.Tickers)
	}
	// Unset values keep their defaults.
	if cfg.Run.Fixed != 50 || cfg.Run.Window != 5 {
		t.Errorf("Run defaults lost: fixed=%v window=%d", cfg.Run.Fixed, cfg.Run.Window)
	}

	// -- Sweep / Output --
	if len(cfg.Sweep.Thresholds) != 3 || cfg.Sweep.Workers != 8 {
		t.Errorf("Sweep = %+v", cfg.Sweep)
	}
	if cfg.Output.Dir != "results" || !cfg.Output.TradesParquet {
		t.Errorf("Output = %+v", cfg.Output)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	start, end, err := cfg.Run.Dates()
	if err != nil {
		t.Fatalf("Dates: %v", err)
	}
	if start.Year() != 2010 || end.Year() != 2020 {
		t.Errorf("Dates = %v %v", start, end)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("DCALAB_SOURCE", "alpaca")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Data.Source != "alpaca" {
		t.Errorf("Data.Source = %q, want alpaca (env override)", cfg.Data.Source)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing strategy", func(c *Config) { c.Run.Strategy = "" }},
		{"unknown strategy", func(c *Config) { c.Run.Strategy = "strat9" }},
		{"length mismatch", func(c *Config) { c.Run.Weights = []float64{1} }},
		{"negative weight", func(c *Config) { c.Run.Weights = []float64{0.7, -0.3} }},
		{"bad mode", func(c *Config) { c.Run.Mode = "double" }},
		{"bad start", func(c *Config) { c.Run.Start = "01/02/2005" }},
		{"end before start", func(c *Config) { c.Run.End = "2004-12-31" }},
		{"bad source", func(c *Config) { c.Data.Source = "yahoo" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Run.Strategy = "strat1"
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, strategy.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := Default()
	cfg.Run.Strategy = "strat2"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestGrid(t *testing.T) {
	cfg := Default()
	cfg.Sweep.Strategies = []string{"strat2", "strat3"}
	cfg.Sweep.Windows = []int{5, 20}
	cfg.Sweep.Thresholds = []float64{0.05, 0.1}

	if err := cfg.ValidateSweep(); err != nil {
		t.Fatalf("ValidateSweep() = %v", err)
	}
	grid, err := cfg.Grid()
	if err != nil {
		t.Fatalf("Grid() = %v", err)
	}
	if len(grid.Kinds) != 2 || grid.Kinds[0] != strategy.KindRollingDrawdown {
		t.Errorf("Kinds = %v", grid.Kinds)
	}
	if grid.Base.Fixed != 50 {
		t.Errorf("Base.Fixed = %v, want 50", grid.Base.Fixed)
	}

	cfg.Sweep.Modes = []string{"fixed", "weird"}
	if err := cfg.ValidateSweep(); !errors.Is(err, strategy.ErrInvalidConfig) {
		t.Errorf("ValidateSweep() = %v, want ErrInvalidConfig", err)
	}

	all := Default()
	kinds, err := all.SweepKinds()
	if err != nil || len(kinds) != 3 {
		t.Errorf("SweepKinds() on defaults = %v, %v", kinds, err)
	}
}
