package builtins

import (
	"fmt"

	"dcalab/internal/domain"
	"dcalab/internal/portfolio"
	"dcalab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RollingDrawdown)(nil)

// RollingDrawdown buys whenever the synthetic index has fallen by at least
// threshold over the trailing window of trading days.
type RollingDrawdown struct {
	name      string
	window    int
	threshold float64
	payout    strategy.Payout
}

// NewRollingDrawdown creates a RollingDrawdown strategy. window is counted in
// trading days and must be at least 1.
func NewRollingDrawdown(window int, threshold float64, payout strategy.Payout) (*RollingDrawdown, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: window must be at least 1 day, got %d", strategy.ErrInvalidConfig, window)
	}
	if err := strategy.RequireNonNegative("threshold", threshold); err != nil {
		return nil, err
	}
	if err := payout.Validate(); err != nil {
		return nil, err
	}
	return &RollingDrawdown{
		name:      "strat2_rolling_dd",
		window:    window,
		threshold: threshold,
		payout:    payout,
	}, nil
}

// Name returns the strategy identifier.
func (s *RollingDrawdown) Name() string { return s.name }

// Kind returns strategy.KindRollingDrawdown.
func (s *RollingDrawdown) Kind() strategy.Kind { return strategy.KindRollingDrawdown }

// Run triggers on every date whose rolling return is <= -threshold.
func (s *RollingDrawdown) Run(table *domain.PriceTable, weights domain.Weights) (*strategy.Result, error) {
	if table == nil {
		return nil, fmt.Errorf("%s: nil price table", s.name)
	}
	index := strategy.SyntheticIndex(table, weights)
	roll := strategy.RollingReturn(index, s.window)
	trigger := strategy.TriggerSeries(roll, s.threshold)

	ledger := portfolio.NewLedger(weights.Tickers())
	for i := range trigger {
		if trigger[i] == 0 {
			continue
		}
		amount, err := s.payout.Amount(-roll[i])
		if err != nil {
			return nil, err
		}
		strategy.BuyAll(ledger, table, weights, i, amount)
	}

	return &strategy.Result{
		Ledger: ledger,
		Diagnostics: []domain.Series{
			{Name: fmt.Sprintf("rolling_return_%dd", s.window), Values: roll},
			{Name: "trigger", Values: trigger},
		},
	}, nil
}
