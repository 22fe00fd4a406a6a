package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"dcalab/internal/domain"
	"dcalab/internal/gather/us"
)

// fetchCmd implements 'dca-backtest fetch'.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily bars into the local Parquet cache",
	Long: `Fetch warms the price cache for the configured tickers without running
a backtest. With Alpaca credentials an open-ended range stops at the latest
finished trading session.

Example usage:
  dca-backtest fetch --tickers SPY,ACWI,QQQ --start 2010-01-01
  dca-backtest fetch --cached --start 2024-01-01`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("start", "", "Start date YYYY-MM-DD")
	f.String("end", "", "End date YYYY-MM-DD (default latest session)")
	f.StringSlice("tickers", nil, "Tickers to fetch")
	f.String("source", "", "Price source: auto, alpaca or stooq")
	f.Bool("cached", false, "Refresh every symbol already in the cache instead of --tickers")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	var cached bool
	o := &flagOverrides{cmd: cmd}
	o.set("start", func() (e error) { cfg.Run.Start, e = f.GetString("start"); return })
	o.set("end", func() (e error) { cfg.Run.End, e = f.GetString("end"); return })
	o.set("tickers", func() (e error) { cfg.Run.Tickers, e = f.GetStringSlice("tickers"); return })
	o.set("source", func() (e error) { cfg.Data.Source, e = f.GetString("source"); return })
	o.set("cached", func() (e error) { cached, e = f.GetBool("cached"); return })
	if o.err != nil {
		return o.err
	}

	start, end, err := cfg.Run.Dates()
	if err != nil {
		return err
	}
	if end.IsZero() && cfg.Alpaca.Configured() {
		day, err := us.LatestFinishedTradingDay(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		if err != nil {
			slog.Warn("trading calendar unavailable, fetching through today", "err", err)
		} else {
			end = day
			slog.Info("open-ended fetch pinned to latest session", "end", end.Format(domain.DateLayout))
		}
	}

	loader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}
	tickers := cfg.Run.Tickers
	if cached {
		if tickers, err = loader.CachedSymbols(cmd.Context()); err != nil {
			return err
		}
	}
	if len(tickers) == 0 {
		return fmt.Errorf("no tickers to fetch")
	}
	counts, err := loader.Fetch(cmd.Context(), tickers, start, end)

	symbols := make([]string, 0, len(counts))
	for s := range counts {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	out := cmd.OutOrStdout()
	for _, s := range symbols {
		fmt.Fprintf(out, "%-8s %d bars\n", s, counts[s])
	}
	return err
}
