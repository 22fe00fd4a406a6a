package strategy

import (
	"math"

	"dcalab/internal/domain"
	"dcalab/internal/portfolio"
)

// SyntheticIndex compounds the weighted sum of per-asset daily simple returns
// into a single index starting at 1.0. The first day has a zero return, and
// non-finite returns (a zero or missing prior close) count as zero. Only the
// weighted tickers contribute.
func SyntheticIndex(table *domain.PriceTable, weights domain.Weights) []float64 {
	n := table.Len()
	index := make([]float64, n)
	if n == 0 {
		return index
	}

	cols := make([][]float64, len(weights))
	for i, w := range weights {
		cols[i] = table.Close(w.Ticker)
	}

	level := 1.0
	index[0] = level
	for t := 1; t < n; t++ {
		var ret float64
		for i, w := range weights {
			col := cols[i]
			if col == nil {
				continue
			}
			r := col[t]/col[t-1] - 1.0
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			ret += r * w.Weight
		}
		level *= 1.0 + ret
		index[t] = level
	}
	return index
}

// RollingReturn returns index[t]/index[t-window]-1, with zero for the first
// window days where no lagged value exists.
func RollingReturn(index []float64, window int) []float64 {
	out := make([]float64, len(index))
	for t := window; t < len(index); t++ {
		r := index[t]/index[t-window] - 1.0
		if math.IsNaN(r) {
			r = 0
		}
		out[t] = r
	}
	return out
}

// PeakDrawdown returns index[t]/max(index[0..t])-1.
func PeakDrawdown(index []float64) []float64 {
	out := make([]float64, len(index))
	var peak float64
	for t, v := range index {
		if t == 0 || v > peak {
			peak = v
		}
		out[t] = v/peak - 1.0
	}
	return out
}

// TriggerSeries returns 1 where signal <= -threshold and 0 elsewhere.
func TriggerSeries(signal []float64, threshold float64) []float64 {
	out := make([]float64, len(signal))
	for i, v := range signal {
		if v <= -threshold {
			out[i] = 1
		}
	}
	return out
}

// BuyAll spends amount on the i-th date of table, split across weights in
// allocation order, each ticker at its own close.
func BuyAll(ledger *portfolio.Ledger, table *domain.PriceTable, weights domain.Weights, i int, amount float64) {
	date := table.Date(i)
	for _, w := range weights {
		ledger.Buy(date, w.Ticker, amount*w.Weight, table.At(i, w.Ticker))
	}
}
