package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dcalab/internal/domain"
	"dcalab/internal/report"
)

// runsCmd implements 'dca-backtest runs'.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs recorded in the SQLite catalog",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the metrics of one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

var runsLimit int

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 for all)")
	runsCmd.AddCommand(runsShowCmd)
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	if catalog == nil {
		return fmt.Errorf("run catalog disabled (storage.sqlite_path is empty)")
	}
	defer catalog.Close()

	runs, err := catalog.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCreated\tName\tTickers\tStrategy\tTrades")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID,
			r.CreatedAt.Local().Format(domain.DateLayout+" 15:04"),
			r.Name,
			strings.Join(r.Tickers, ","),
			r.Metrics.Strategy,
			r.Metrics.NumTrades,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	if catalog == nil {
		return fmt.Errorf("run catalog disabled (storage.sqlite_path is empty)")
	}
	defer catalog.Close()

	run, err := catalog.GetRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", run.ID, run.Name)
	fmt.Fprintf(out, "tickers %s  weights %v\n", strings.Join(run.Tickers, ","), run.Weights)
	if run.ConfigSHA256 != "" {
		fmt.Fprintf(out, "config sha256 %s\n", run.ConfigSHA256)
	}
	return report.Summary(out, run.Metrics)
}
