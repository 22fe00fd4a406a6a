package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcalab/internal/domain"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func testTable(t *testing.T) *domain.PriceTable {
	t.Helper()
	dates := []time.Time{day(1, 2), day(1, 3), day(1, 4), day(1, 5)}
	tbl, err := domain.NewPriceTable(dates, []string{"A", "B"}, [][]float64{
		{10, 12, 11, 13},
		{20, 22, 21, 19},
	})
	require.NoError(t, err)
	return tbl
}

func TestBuy(t *testing.T) {
	l := NewLedger([]string{"A"})
	l.Buy(day(1, 2), "A", 60, 10)

	trades := l.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, -60.0, trades[0].Cash)
	assert.Equal(t, 6.0, trades[0].Units)
	assert.Equal(t, 10.0, trades[0].Price)
}

func TestBuy_DegeneratePrice(t *testing.T) {
	l := NewLedger([]string{"A"})
	l.Buy(day(1, 2), "A", 50, 0)
	l.Buy(day(1, 3), "A", 50, -1)
	l.Buy(day(1, 4), "A", 50, math.NaN())

	for _, tr := range l.Trades() {
		assert.Equal(t, 0.0, tr.Units, "zero units on degenerate price")
		assert.Equal(t, -50.0, tr.Cash, "outflow still logged")
	}
	cf := l.DailyCashflows([]time.Time{day(1, 2), day(1, 3), day(1, 4)})
	assert.Equal(t, []float64{-50, -50, -50}, cf)
}

func TestTrades_StableSort(t *testing.T) {
	l := NewLedger([]string{"A", "B"})
	l.Buy(day(1, 3), "B", 1, 1)
	l.Buy(day(1, 2), "A", 2, 1)
	l.Buy(day(1, 3), "A", 3, 1)
	l.Buy(day(1, 2), "B", 4, 1)

	got := l.Trades()
	want := []struct {
		d    time.Time
		tkr  string
		cash float64
	}{
		{day(1, 2), "A", -2},
		{day(1, 2), "B", -4},
		{day(1, 3), "B", -1},
		{day(1, 3), "A", -3},
	}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.True(t, got[i].Date.Equal(w.d), "trade %d date", i)
		assert.Equal(t, w.tkr, got[i].Ticker, "trade %d ticker", i)
		assert.Equal(t, w.cash, got[i].Cash, "trade %d cash", i)
	}
}

func TestDailyUnits(t *testing.T) {
	tbl := testTable(t)
	l := NewLedger([]string{"A", "B"})
	l.Buy(day(1, 3), "A", 24, 12)
	l.Buy(day(1, 3), "A", 12, 12) // same-day trades are summed
	l.Buy(day(1, 5), "B", 38, 19)

	units := l.DailyUnits(tbl.Dates())
	assert.Equal(t, []float64{0, 3, 3, 3}, units[0])
	assert.Equal(t, []float64{0, 0, 0, 2}, units[1])

	for _, col := range units {
		for d := 1; d < len(col); d++ {
			assert.GreaterOrEqual(t, col[d], col[d-1], "units must be non-decreasing")
		}
	}
}

func TestDailyUnits_Empty(t *testing.T) {
	tbl := testTable(t)
	l := NewLedger([]string{"A", "B"})
	units := l.DailyUnits(tbl.Dates())
	require.Len(t, units, 2)
	assert.Equal(t, []float64{0, 0, 0, 0}, units[0])
}

func TestDailyValue(t *testing.T) {
	tbl := testTable(t)
	l := NewLedger([]string{"A", "B"})
	l.Buy(day(1, 2), "A", 60, 10)
	l.Buy(day(1, 2), "B", 40, 20)
	l.Buy(day(1, 4), "A", 22, 11)

	value := l.DailyValue(tbl)
	units := l.DailyUnits(tbl.Dates())
	for d := range value {
		want := units[0][d]*tbl.At(d, "A") + units[1][d]*tbl.At(d, "B")
		assert.Equal(t, want, value[d], "value on day %d", d)
	}
	assert.InDelta(t, 6*10+2*20, value[0], 1e-12)
	assert.InDelta(t, 8*13+2*19, value[3], 1e-12)
}

func TestDailyCashflows(t *testing.T) {
	tbl := testTable(t)
	l := NewLedger([]string{"A", "B"})
	l.Buy(day(1, 2), "A", 60, 10)
	l.Buy(day(1, 2), "B", 40, 20)
	l.Buy(day(1, 4), "A", 22, 11)

	cf := l.DailyCashflows(tbl.Dates())
	assert.Equal(t, []float64{-100, 0, -22, 0}, cf)

	var sumCF, sumTrades float64
	for _, v := range cf {
		sumCF += v
	}
	for _, tr := range l.Trades() {
		sumTrades += tr.Cash
	}
	assert.Equal(t, sumTrades, sumCF)
}
