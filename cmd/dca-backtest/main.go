package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dcalab/internal/strategy"
)

const version = "0.3.0"

var (
	configPath string
	logLevel   string
)

// rootCmd is the base command for the dca-backtest CLI.
var rootCmd = &cobra.Command{
	Use:   "dca-backtest",
	Short: "Backtest dollar-cost-averaging strategies on historical prices",
	Long: `dca-backtest evaluates DCA strategies (monthly fixed buys and
drawdown-triggered buys) against daily close prices, writing a time series,
a trade ledger and a metrics record for every run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dca-backtest %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML run config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd, sweepCmd, fetchCmd, runsCmd, versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, strategy.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
