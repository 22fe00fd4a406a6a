package main

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"dcalab/internal/config"
)

func TestRunName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	tests := []struct {
		explicit, cfg, fallback string
		want                    string
	}{
		{"mine", "configs/peak.yml", "strat3", "mine__20240305_140709"},
		{"", "configs/peak.yml", "strat3", "peak__20240305_140709"},
		{"", "", "strat1", "strat1__20240305_140709"},
	}
	for _, tt := range tests {
		if got := runName(tt.explicit, tt.cfg, tt.fallback, now); got != tt.want {
			t.Errorf("runName(%q, %q, %q) = %q, want %q", tt.explicit, tt.cfg, tt.fallback, got, tt.want)
		}
	}
}

func TestConfigDigest_NoPath(t *testing.T) {
	if got := configDigest(""); got != "" {
		t.Errorf("configDigest(\"\") = %q, want empty", got)
	}
}

func TestApplyRunFlags_OnlyChanged(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	if err := cmd.Flags().Parse([]string{"--tickers", "QQQ,IWM", "--weights", "0.5,0.5", "--no-catalog"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg := config.Default()
	if err := applyRunFlags(cmd, cfg); err != nil {
		t.Fatalf("applyRunFlags: %v", err)
	}
	if len(cfg.Run.Tickers) != 2 || cfg.Run.Tickers[0] != "QQQ" || cfg.Run.Tickers[1] != "IWM" {
		t.Errorf("Tickers = %v, want [QQQ IWM]", cfg.Run.Tickers)
	}
	if cfg.Run.Start != "2005-01-01" {
		t.Errorf("Start = %q, want the default to survive", cfg.Run.Start)
	}
	if cfg.Run.Amount != 100 {
		t.Errorf("Amount = %v, want the default to survive", cfg.Run.Amount)
	}
	if cfg.Storage.SQLitePath != "" {
		t.Errorf("SQLitePath = %q, want empty with --no-catalog", cfg.Storage.SQLitePath)
	}
}

func TestFlagOverrides_FirstErrorWins(t *testing.T) {
	cmd := &cobra.Command{Use: "fetch"}
	cmd.Flags().String("start", "", "")
	cmd.Flags().String("end", "", "")
	cmd.Flags().String("source", "", "")
	if err := cmd.Flags().Parse([]string{"--start", "2020-01-01", "--end", "2021-01-01"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	boom := errors.New("bad flag")
	var calls []string
	o := &flagOverrides{cmd: cmd}
	o.set("source", func() error { calls = append(calls, "source"); return nil })
	o.set("start", func() error { calls = append(calls, "start"); return boom })
	o.set("end", func() error { calls = append(calls, "end"); return nil })

	if !errors.Is(o.err, boom) {
		t.Errorf("err = %v, want %v", o.err, boom)
	}
	if len(calls) != 1 || calls[0] != "start" {
		t.Errorf("calls = %v, want [start]", calls)
	}
}
