// Package metrics reduces value and cashflow series into return and drawdown
// statistics. Indeterminate results are reported as NaN rather than errors.
package metrics

import (
	"math"
	"time"
)

// PeriodsPerYear is the number of trading days used for annualisation.
const PeriodsPerYear = 252

// SimpleReturnPct returns (final-contributions)/contributions*100, or NaN when
// nothing was contributed.
func SimpleReturnPct(finalValue, totalContributions float64) float64 {
	if totalContributions == 0 {
		return math.NaN()
	}
	return (finalValue - totalContributions) / totalContributions * 100.0
}

// DrawdownSeries returns value/runningMax(value)-1 elementwise. Entries where
// the running maximum is still zero come out as NaN.
func DrawdownSeries(values []float64) []float64 {
	dd := make([]float64, len(values))
	var peak float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		dd[i] = v/peak - 1.0
	}
	return dd
}

// Drawdown is the deepest decline of a value series from its running peak.
type Drawdown struct {
	Pct    float64 // fraction, <= 0
	Peak   time.Time
	Trough time.Time
	OK     bool // false when the drawdown series is entirely NaN
}

// MaxDrawdown finds the minimum of the drawdown series, ignoring NaN entries.
// The peak is the first date holding the highest value up to and including
// the trough.
func MaxDrawdown(dates []time.Time, values []float64) Drawdown {
	dd := DrawdownSeries(values)
	trough := -1
	for i, v := range dd {
		if math.IsNaN(v) {
			continue
		}
		if trough < 0 || v < dd[trough] {
			trough = i
		}
	}
	if trough < 0 {
		return Drawdown{Pct: math.NaN()}
	}

	peak := 0
	for i := 1; i <= trough; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return Drawdown{
		Pct:    dd[trough],
		Peak:   dates[peak],
		Trough: dates[trough],
		OK:     true,
	}
}

// TWRAnnualized compounds the daily simple returns of values and annualises
// the product by periodsPerYear/n. The first period has a zero return and a
// period starting from a zero value counts as zero return. NaN for n < 2.
func TWRAnnualized(values []float64, periodsPerYear int) float64 {
	n := len(values)
	if n <= 1 {
		return math.NaN()
	}
	growth := 1.0
	for i := 1; i < n; i++ {
		growth *= 1.0 + periodReturn(values[i-1], values[i])
	}
	return math.Pow(growth, float64(periodsPerYear)/float64(n)) - 1.0
}

// CAGR is the compound annual growth rate between the first and last value.
// NaN for fewer than two values or a non-positive starting value.
func CAGR(values []float64, periodsPerYear int) float64 {
	n := len(values)
	if n <= 1 || !(values[0] > 0) {
		return math.NaN()
	}
	years := float64(n) / float64(periodsPerYear)
	return math.Pow(values[n-1]/values[0], 1.0/years) - 1.0
}

func periodReturn(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	r := cur/prev - 1.0
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
