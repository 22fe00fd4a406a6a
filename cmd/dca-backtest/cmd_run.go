package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"dcalab/internal/config"
	"dcalab/internal/report"
	"dcalab/internal/store"
	"dcalab/internal/strategy"
	"dcalab/internal/strategy/builtins"
)

// runCmd implements 'dca-backtest run [strat1|strat2|strat3]'.
var runCmd = &cobra.Command{
	Use:   "run [strat1|strat2|strat3]",
	Short: "Run one strategy and write its artifacts",
	Long: `Run a single backtest. The strategy comes from the positional argument
or run.strategy in the config file; flags override config values.

Example usage:
  dca-backtest run strat1 --tickers SPY,ACWI --weights 0.7,0.3
  dca-backtest run strat3 --threshold 0.1 --mode proportional --k 2000
  dca-backtest run --config configs/peak.yml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBacktest,
}

func init() {
	addRunFlags(runCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Run.Strategy = args[0]
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	// Configuration errors abort before any data is fetched.
	if err := cfg.Validate(); err != nil {
		return err
	}
	kind, _ := strategy.ParseKind(cfg.Run.Strategy)
	strat, err := builtins.FromParams(kind, cfg.Run.Params())
	if err != nil {
		return err
	}
	weights, _ := cfg.Run.Allocation()
	start, end, _ := cfg.Run.Dates()

	loader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}
	registry := strategy.NewRegistry()
	registry.Register(strat)
	bt := strategy.NewBacktester(loader, registry, logger)

	res, err := bt.Run(cmd.Context(), strategy.Request{
		Strategy: strat.Name(),
		Weights:  weights,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	name := runName(cfg.Run.RunName, configPath, cfg.Run.Strategy, now)
	w := report.NewWriter(cfg.Output.Dir, cfg.Output.TradesParquet)
	paths, err := w.WriteRun(name, res, configPath)
	if err != nil {
		return err
	}

	if err := recordRun(cmd.Context(), cfg, &store.Run{
		Name:         name,
		CreatedAt:    now.UTC(),
		Tickers:      weights.Tickers(),
		Weights:      cfg.Run.Weights,
		ConfigSHA256: configDigest(configPath),
		Metrics:      res.Metrics,
	}); err != nil {
		// The artifacts are already on disk; a catalog failure is reported
		// but does not fail the run.
		slog.Warn("recording run failed", "run", name, "err", err)
	}

	out := cmd.OutOrStdout()
	if err := report.Summary(out, res.Metrics); err != nil {
		return err
	}
	fmt.Fprintln(out, "Wrote:")
	for _, f := range paths.Files() {
		fmt.Fprintln(out, " ", f)
	}
	return nil
}

// recordRun saves run to the catalog, if one is configured.
func recordRun(ctx context.Context, cfg *config.Config, run *store.Run) error {
	catalog, err := openCatalog(cfg)
	if err != nil || catalog == nil {
		return err
	}
	defer catalog.Close()
	id, err := catalog.SaveRun(ctx, run)
	if err != nil {
		return err
	}
	slog.Info("run recorded", "id", id, "name", run.Name)
	return nil
}
