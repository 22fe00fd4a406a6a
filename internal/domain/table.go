package domain

import (
	"fmt"
	"time"
)

// PriceTable is an immutable date-indexed table of closing prices with one
// column per ticker. Dates are strictly ascending; calendar gaps are allowed.
type PriceTable struct {
	dates   []time.Time
	tickers []string
	cols    map[string][]float64
}

// NewPriceTable builds a PriceTable. closes[i] is the column for tickers[i]
// and must have one value per date.
func NewPriceTable(dates []time.Time, tickers []string, closes [][]float64) (*PriceTable, error) {
	if len(tickers) != len(closes) {
		return nil, fmt.Errorf("price table: %d tickers but %d columns", len(tickers), len(closes))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("price table: dates not strictly ascending at %s", dates[i].Format(DateLayout))
		}
	}

	t := &PriceTable{
		dates:   append([]time.Time(nil), dates...),
		tickers: append([]string(nil), tickers...),
		cols:    make(map[string][]float64, len(tickers)),
	}
	for i, tkr := range tickers {
		if _, dup := t.cols[tkr]; dup {
			return nil, fmt.Errorf("price table: duplicate ticker %q", tkr)
		}
		if len(closes[i]) != len(dates) {
			return nil, fmt.Errorf("price table: column %q has %d values for %d dates", tkr, len(closes[i]), len(dates))
		}
		t.cols[tkr] = append([]float64(nil), closes[i]...)
	}
	return t, nil
}

// Len returns the number of dates in the index.
func (t *PriceTable) Len() int { return len(t.dates) }

// Dates returns a copy of the date index.
func (t *PriceTable) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Date returns the i-th index date.
func (t *PriceTable) Date(i int) time.Time { return t.dates[i] }

// Tickers returns the column names in construction order.
func (t *PriceTable) Tickers() []string {
	return append([]string(nil), t.tickers...)
}

// Has reports whether the table carries a column for ticker.
func (t *PriceTable) Has(ticker string) bool {
	_, ok := t.cols[ticker]
	return ok
}

// Close returns a copy of the close-price column for ticker, or nil when the
// ticker is absent.
func (t *PriceTable) Close(ticker string) []float64 {
	col, ok := t.cols[ticker]
	if !ok {
		return nil
	}
	return append([]float64(nil), col...)
}

// At returns the close of ticker on the i-th index date.
func (t *PriceTable) At(i int, ticker string) float64 {
	return t.cols[ticker][i]
}

// Start returns the first index date, or the zero time for an empty table.
func (t *PriceTable) Start() time.Time {
	if len(t.dates) == 0 {
		return time.Time{}
	}
	return t.dates[0]
}

// End returns the last index date, or the zero time for an empty table.
func (t *PriceTable) End() time.Time {
	if len(t.dates) == 0 {
		return time.Time{}
	}
	return t.dates[len(t.dates)-1]
}
