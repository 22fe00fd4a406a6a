package domain

import (
	"fmt"
	"math"
)

// Weight is the fractional allocation of deployed cash to one ticker.
type Weight struct {
	Ticker string
	Weight float64
}

// Weights is an ordered allocation. The order is the order in which trades
// are emitted on a trigger date. Weights are raw multipliers: they are never
// normalised and need not sum to 1.
type Weights []Weight

// WeightsFromLists pairs a ticker list with a weight list of equal length.
func WeightsFromLists(tickers []string, weights []float64) (Weights, error) {
	if len(tickers) != len(weights) {
		return nil, fmt.Errorf("%d tickers but %d weights", len(tickers), len(weights))
	}
	w := make(Weights, len(tickers))
	for i := range tickers {
		w[i] = Weight{Ticker: tickers[i], Weight: weights[i]}
	}
	return w, nil
}

// Tickers returns the tickers in allocation order.
func (w Weights) Tickers() []string {
	out := make([]string, len(w))
	for i, x := range w {
		out[i] = x.Ticker
	}
	return out
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var s float64
	for _, x := range w {
		s += x.Weight
	}
	return s
}

// Validate checks that every weight is finite and non-negative, that no
// ticker repeats, and that every ticker has a column in table.
func (w Weights) Validate(table *PriceTable) error {
	if len(w) == 0 {
		return fmt.Errorf("no weights given")
	}
	seen := make(map[string]struct{}, len(w))
	for _, x := range w {
		if x.Ticker == "" {
			return fmt.Errorf("empty ticker in weights")
		}
		if _, dup := seen[x.Ticker]; dup {
			return fmt.Errorf("duplicate ticker %q in weights", x.Ticker)
		}
		seen[x.Ticker] = struct{}{}
		if math.IsNaN(x.Weight) || math.IsInf(x.Weight, 0) || x.Weight < 0 {
			return fmt.Errorf("weight for %q must be a non-negative number, got %v", x.Ticker, x.Weight)
		}
		if table != nil && !table.Has(x.Ticker) {
			return fmt.Errorf("ticker %q has no price column", x.Ticker)
		}
	}
	return nil
}
