package prices

import (
	"fmt"
	"sort"
	"time"

	"dcalab/internal/domain"
)

// TableFromBars builds a close-price table for tickers from per-ticker bars.
// Bars are keyed by calendar date (UTC) and only dates present for every
// ticker are kept. A repeated date within one ticker keeps the later bar.
func TableFromBars(tickers []string, bars map[string][]domain.Bar) (*domain.PriceTable, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("building price table: no tickers")
	}

	byTicker := make([]map[int64]float64, len(tickers))
	for i, t := range tickers {
		closes := make(map[int64]float64, len(bars[t]))
		for _, b := range bars[t] {
			closes[domain.Day(b.Timestamp).Unix()] = b.Close
		}
		if len(closes) == 0 {
			return nil, fmt.Errorf("building price table: %s: %w", t, domain.ErrNoData)
		}
		byTicker[i] = closes
	}

	var keys []int64
	for k := range byTicker[0] {
		shared := true
		for _, m := range byTicker[1:] {
			if _, ok := m[k]; !ok {
				shared = false
				break
			}
		}
		if shared {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("building price table: tickers %v share no dates: %w", tickers, domain.ErrNoData)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		dates[i] = time.Unix(k, 0).UTC()
	}
	cols := make([][]float64, len(tickers))
	for i := range tickers {
		col := make([]float64, len(keys))
		for j, k := range keys {
			col[j] = byTicker[i][k]
		}
		cols[i] = col
	}
	return domain.NewPriceTable(dates, tickers, cols)
}
