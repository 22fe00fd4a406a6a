package builtins

import (
	"fmt"

	"dcalab/internal/domain"
	"dcalab/internal/portfolio"
	"dcalab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*PeakDrawdown)(nil)

// PeakDrawdown buys on every day the synthetic index sits at least threshold
// below its running all-time peak. A long slump therefore buys daily, not
// only on the first breach.
type PeakDrawdown struct {
	name      string
	threshold float64
	payout    strategy.Payout
}

// NewPeakDrawdown creates a PeakDrawdown strategy.
func NewPeakDrawdown(threshold float64, payout strategy.Payout) (*PeakDrawdown, error) {
	if err := strategy.RequireNonNegative("threshold", threshold); err != nil {
		return nil, err
	}
	if err := payout.Validate(); err != nil {
		return nil, err
	}
	return &PeakDrawdown{
		name:      "strat3_peak_dd",
		threshold: threshold,
		payout:    payout,
	}, nil
}

// Name returns the strategy identifier.
func (s *PeakDrawdown) Name() string { return s.name }

// Kind returns strategy.KindPeakDrawdown.
func (s *PeakDrawdown) Kind() strategy.Kind { return strategy.KindPeakDrawdown }

// Run triggers on every date whose peak-to-trough drawdown is <= -threshold.
func (s *PeakDrawdown) Run(table *domain.PriceTable, weights domain.Weights) (*strategy.Result, error) {
	if table == nil {
		return nil, fmt.Errorf("%s: nil price table", s.name)
	}
	index := strategy.SyntheticIndex(table, weights)
	dd := strategy.PeakDrawdown(index)
	trigger := strategy.TriggerSeries(dd, s.threshold)

	ledger := portfolio.NewLedger(weights.Tickers())
	for i := range trigger {
		if trigger[i] == 0 {
			continue
		}
		amount, err := s.payout.Amount(-dd[i])
		if err != nil {
			return nil, err
		}
		strategy.BuyAll(ledger, table, weights, i, amount)
	}

	return &strategy.Result{
		Ledger: ledger,
		Diagnostics: []domain.Series{
			{Name: "peak_to_trough_drawdown", Values: dd},
			{Name: "trigger", Values: trigger},
		},
	}, nil
}
