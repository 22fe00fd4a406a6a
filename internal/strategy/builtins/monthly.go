// Package builtins provides the three DCA strategies that ship with dcalab:
// a monthly fixed buy and two drawdown-triggered buys.
package builtins

import (
	"fmt"

	"dcalab/internal/domain"
	"dcalab/internal/portfolio"
	"dcalab/internal/strategy"
	"dcalab/internal/util"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MonthlyFixed)(nil)

// MonthlyFixed invests a fixed amount on the first trading day of every
// calendar month present in the price index.
type MonthlyFixed struct {
	name   string
	amount float64
}

// NewMonthlyFixed creates a MonthlyFixed strategy investing amount per month.
func NewMonthlyFixed(amount float64) (*MonthlyFixed, error) {
	if err := strategy.RequireNonNegative("monthly amount", amount); err != nil {
		return nil, err
	}
	return &MonthlyFixed{name: "strat1_monthly", amount: amount}, nil
}

// Name returns the strategy identifier.
func (s *MonthlyFixed) Name() string { return s.name }

// Kind returns strategy.KindMonthly.
func (s *MonthlyFixed) Kind() strategy.Kind { return strategy.KindMonthly }

// Run buys amount × weight of every ticker on each month's first session.
func (s *MonthlyFixed) Run(table *domain.PriceTable, weights domain.Weights) (*strategy.Result, error) {
	if table == nil {
		return nil, fmt.Errorf("%s: nil price table", s.name)
	}
	ledger := portfolio.NewLedger(weights.Tickers())
	for _, i := range util.FirstTradingDays(table.Dates()) {
		strategy.BuyAll(ledger, table, weights, i, s.amount)
	}
	return &strategy.Result{Ledger: ledger}, nil
}
