package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"dcalab/internal/engine"
	"dcalab/internal/report"
	"dcalab/internal/store"
	"dcalab/internal/strategy/builtins"
)

// sweepCmd implements 'dca-backtest sweep'.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a parameter grid of strategies over one price table",
	Long: `Sweep loads prices once and evaluates every strategy in the grid
defined by the sweep section of the config, in parallel. Empty grid lists
fall back to the run values.

Example usage:
  dca-backtest sweep --strategies strat2,strat3 --thresholds 0.05,0.1,0.2
  dca-backtest sweep --config configs/grid.yml --workers 8`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	addRunFlags(sweepCmd)
	f := sweepCmd.Flags()
	f.StringSlice("strategies", nil, "Strategy kinds to sweep (default all)")
	f.Float64Slice("amounts", nil, "Monthly amounts for strat1")
	f.IntSlice("windows", nil, "Rolling windows for strat2")
	f.Float64Slice("thresholds", nil, "Thresholds for strat2 and strat3")
	f.StringSlice("modes", nil, "Payout modes for strat2 and strat3")
	f.Int("workers", 0, "Parallel workers")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	f := cmd.Flags()
	o := &flagOverrides{cmd: cmd}
	o.set("strategies", func() (e error) { cfg.Sweep.Strategies, e = f.GetStringSlice("strategies"); return })
	o.set("amounts", func() (e error) { cfg.Sweep.Amounts, e = f.GetFloat64Slice("amounts"); return })
	o.set("windows", func() (e error) { cfg.Sweep.Windows, e = f.GetIntSlice("windows"); return })
	o.set("thresholds", func() (e error) { cfg.Sweep.Thresholds, e = f.GetFloat64Slice("thresholds"); return })
	o.set("modes", func() (e error) { cfg.Sweep.Modes, e = f.GetStringSlice("modes"); return })
	o.set("workers", func() (e error) { cfg.Sweep.Workers, e = f.GetInt("workers"); return })
	if o.err != nil {
		return o.err
	}

	if err := cfg.ValidateSweep(); err != nil {
		return err
	}
	grid, err := cfg.Grid()
	if err != nil {
		return err
	}
	strats, err := builtins.Grid(grid)
	if err != nil {
		return err
	}
	weights, _ := cfg.Run.Allocation()
	start, end, _ := cfg.Run.Dates()

	loader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}
	table, err := loader.Load(cmd.Context(), weights.Tickers(), start, end)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(cfg.Sweep.Workers, logger)
	slog.Info("sweep starting", "strategies", len(strats), "workers", eng.Workers(), "days", table.Len())
	outcomes := eng.Sweep(cmd.Context(), table, weights, strats)
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	recs := engine.Metrics(outcomes)

	now := time.Now()
	name := runName(cfg.Run.RunName, configPath, "sweep", now)
	path, err := report.NewWriter(cfg.Output.Dir, false).WriteSweep(name, recs)
	if err != nil {
		return err
	}

	digest := configDigest(configPath)
	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			slog.Error("strategy failed", "strategy", o.Strategy, "err", o.Err)
			continue
		}
		if err := recordRun(cmd.Context(), cfg, &store.Run{
			Name:         name + "/" + o.Strategy,
			CreatedAt:    now.UTC(),
			Tickers:      weights.Tickers(),
			Weights:      cfg.Run.Weights,
			ConfigSHA256: digest,
			Metrics:      o.Result.Metrics,
		}); err != nil {
			slog.Warn("recording run failed", "strategy", o.Strategy, "err", err)
		}
	}

	out := cmd.OutOrStdout()
	if err := report.SweepTable(out, recs); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote: %s\n", path)
	if failed > 0 {
		return fmt.Errorf("%d of %d strategies failed", failed, len(outcomes))
	}
	return nil
}
