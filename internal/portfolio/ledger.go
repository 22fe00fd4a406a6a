// Package portfolio implements the buy-only trade ledger that strategies
// populate and the orchestrator reduces into daily holdings, value and
// cashflow series.
package portfolio

import (
	"sort"
	"time"

	"dcalab/internal/domain"
)

// Ledger is an append-only sequence of buy trades over a fixed set of
// tracked tickers. Trades are never mutated or removed.
type Ledger struct {
	tickers []string
	trades  []domain.Trade
}

// NewLedger creates an empty ledger tracking the given tickers.
func NewLedger(tickers []string) *Ledger {
	return &Ledger{tickers: append([]string(nil), tickers...)}
}

// Tickers returns the tracked tickers in construction order.
func (l *Ledger) Tickers() []string {
	return append([]string(nil), l.tickers...)
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int { return len(l.trades) }

// Buy records spending cashAmount on ticker at price. A non-positive (or NaN)
// price records zero units while the outflow is still logged.
func (l *Ledger) Buy(date time.Time, ticker string, cashAmount, price float64) {
	units := 0.0
	if price > 0 {
		units = cashAmount / price
	}
	l.trades = append(l.trades, domain.Trade{
		Date:   date,
		Ticker: ticker,
		Cash:   -cashAmount,
		Units:  units,
		Price:  price,
	})
}

// Trades returns the trades sorted by date. Same-date trades keep their
// insertion order.
func (l *Ledger) Trades() []domain.Trade {
	out := append([]domain.Trade(nil), l.trades...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// DailyUnits returns, for each tracked ticker (in Tickers order), the
// cumulative units held as of every date in dates: the sum of units of all
// trades on that ticker dated on or before the date.
func (l *Ledger) DailyUnits(dates []time.Time) [][]float64 {
	pos := make(map[string]int, len(l.tickers))
	out := make([][]float64, len(l.tickers))
	for i, t := range l.tickers {
		pos[t] = i
		out[i] = make([]float64, len(dates))
	}
	if len(dates) == 0 {
		return out
	}

	trades := l.Trades()
	cum := make([]float64, len(l.tickers))
	k := 0
	for d, date := range dates {
		for k < len(trades) && !trades[k].Date.After(date) {
			if i, ok := pos[trades[k].Ticker]; ok {
				cum[i] += trades[k].Units
			}
			k++
		}
		for i := range cum {
			out[i][d] = cum[i]
		}
	}
	return out
}

// DailyValue returns the market value of the holdings on every date of the
// table's index: the sum over tracked tickers of units times close.
func (l *Ledger) DailyValue(table *domain.PriceTable) []float64 {
	units := l.DailyUnits(table.Dates())
	value := make([]float64, table.Len())
	for i, t := range l.tickers {
		col := table.Close(t)
		if col == nil {
			continue
		}
		for d := range value {
			value[d] += units[i][d] * col[d]
		}
	}
	return value
}

// DailyCashflows returns the signed trade cash summed per date; dates without
// trades carry zero.
func (l *Ledger) DailyCashflows(dates []time.Time) []float64 {
	idx := make(map[int64]int, len(dates))
	for i, d := range dates {
		idx[d.Unix()] = i
	}
	cf := make([]float64, len(dates))
	for _, tr := range l.Trades() {
		if i, ok := idx[tr.Date.Unix()]; ok {
			cf[i] += tr.Cash
		}
	}
	return cf
}
