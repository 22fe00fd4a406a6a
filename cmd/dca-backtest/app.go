package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dcalab/internal/config"
	"dcalab/internal/gather"
	"dcalab/internal/gather/stooq"
	"dcalab/internal/gather/us"
	"dcalab/internal/prices"
	"dcalab/internal/store"
	"dcalab/internal/util"
)

// loadConfig reads --config (if any) and sets up the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	return cfg, logger, nil
}

// addRunFlags registers the flags that override the run section.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("start", "", "Start date YYYY-MM-DD (default 2005-01-01)")
	f.String("end", "", "End date YYYY-MM-DD (default today)")
	f.StringSlice("tickers", nil, "Tickers, e.g. SPY,ACWI")
	f.Float64Slice("weights", nil, "Weights matching --tickers, e.g. 0.7,0.3")
	f.Float64("amount", 0, "Monthly amount (strat1)")
	f.Int("window", 0, "Rolling window in trading days (strat2)")
	f.Float64("threshold", 0, "Drawdown threshold as a fraction (strat2, strat3)")
	f.String("mode", "", "Payout mode: fixed or proportional (strat2, strat3)")
	f.Float64("fixed", 0, "Dollars per trigger in fixed mode")
	f.Float64("k", 0, "Dollars per 1.0 of drawdown in proportional mode")
	f.String("source", "", "Price source: auto, alpaca or stooq")
	f.Bool("refresh", false, "Ignore the price cache and refetch")
	f.String("out", "", "Output directory")
	f.String("run-name", "", "Run name prefix")
	f.Bool("trades-parquet", false, "Also write trades as Parquet")
	f.Bool("no-catalog", false, "Do not record the run in the SQLite catalog")
}

// flagOverrides runs a setter for every flag the user set explicitly and
// keeps the first error.
type flagOverrides struct {
	cmd *cobra.Command
	err error
}

func (o *flagOverrides) set(name string, fn func() error) {
	if o.err == nil && o.cmd.Flags().Changed(name) {
		o.err = fn()
	}
}

// applyRunFlags copies every explicitly set flag over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	o := &flagOverrides{cmd: cmd}
	set := o.set
	set("start", func() (e error) { cfg.Run.Start, e = f.GetString("start"); return })
	set("end", func() (e error) { cfg.Run.End, e = f.GetString("end"); return })
	set("tickers", func() (e error) { cfg.Run.Tickers, e = f.GetStringSlice("tickers"); return })
	set("weights", func() (e error) { cfg.Run.Weights, e = f.GetFloat64Slice("weights"); return })
	set("amount", func() (e error) { cfg.Run.Amount, e = f.GetFloat64("amount"); return })
	set("window", func() (e error) { cfg.Run.Window, e = f.GetInt("window"); return })
	set("threshold", func() (e error) { cfg.Run.Threshold, e = f.GetFloat64("threshold"); return })
	set("mode", func() (e error) { cfg.Run.Mode, e = f.GetString("mode"); return })
	set("fixed", func() (e error) { cfg.Run.Fixed, e = f.GetFloat64("fixed"); return })
	set("k", func() (e error) { cfg.Run.K, e = f.GetFloat64("k"); return })
	set("source", func() (e error) { cfg.Data.Source, e = f.GetString("source"); return })
	set("refresh", func() (e error) { cfg.Data.Refresh, e = f.GetBool("refresh"); return })
	set("out", func() (e error) { cfg.Output.Dir, e = f.GetString("out"); return })
	set("run-name", func() (e error) { cfg.Run.RunName, e = f.GetString("run-name"); return })
	set("trades-parquet", func() (e error) { cfg.Output.TradesParquet, e = f.GetBool("trades-parquet"); return })
	set("no-catalog", func() error {
		off, e := f.GetBool("no-catalog")
		if off {
			cfg.Storage.SQLitePath = ""
		}
		return e
	})
	return o.err
}

// newLoader wires the Parquet cache and the configured remote sources.
func newLoader(cfg *config.Config, logger *slog.Logger) (*prices.Loader, error) {
	var alpacaSrc gather.Source
	if cfg.Alpaca.Configured() {
		alpacaSrc = us.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed)
	}
	stooqSrc := stooq.NewSource(cfg.Data.StooqURL, cfg.Data.RateLimitPerMin)

	sources, err := prices.SelectSources(cfg.Data.Source, alpacaSrc, stooqSrc)
	if err != nil {
		return nil, err
	}

	var cache store.BarStore
	if cfg.Storage.DataDir != "" {
		cache = store.NewParquetStore(cfg.Storage.DataDir)
	}
	return prices.NewLoader(cache, sources, prices.Options{
		Retries:   cfg.Data.Retries,
		BaseDelay: cfg.Data.RetryDelay,
		Refresh:   cfg.Data.Refresh,
	}, logger), nil
}

// openCatalog opens the run catalog, or returns nil when it is disabled.
func openCatalog(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.Storage.SQLitePath == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening run catalog: %w", err)
	}
	return s, nil
}

// runName builds "<prefix>__YYYYMMDD_HHMMSS". The prefix is the explicit
// name, else the config file's base name, else fallback.
func runName(explicit, cfgPath, fallback string, now time.Time) string {
	prefix := explicit
	if prefix == "" && cfgPath != "" {
		base := filepath.Base(cfgPath)
		prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if prefix == "" {
		prefix = fallback
	}
	return prefix + "__" + now.Format("20060102_150405")
}

// configDigest hashes the config file, or returns "" when none was given.
func configDigest(path string) string {
	if path == "" {
		return ""
	}
	sum, err := util.FileSHA256(path)
	if err != nil {
		slog.Warn("hashing config failed", "path", path, "err", err)
		return ""
	}
	return sum
}
