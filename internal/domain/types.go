// Package domain holds the core value types shared across dcalab: daily bars,
// the close-price table, portfolio weights, and buy trades.
package domain

import (
	"errors"
	"time"
)

// Market identifies the market segment a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
)

// DateLayout is the calendar date format used in file names, reports and
// configuration.
const DateLayout = "2006-01-02"

// Bar is a single daily OHLCV bar.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Trade is an immutable buy record. Cash is the signed cashflow of the trade
// and is negative for a purchase.
type Trade struct {
	Date   time.Time
	Ticker string
	Cash   float64
	Units  float64
	Price  float64
}

// Series is a named float series aligned with a PriceTable date index.
type Series struct {
	Name   string
	Values []float64
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ErrNoData marks missing price data: an empty table, or a requested ticker
// for which no source returned bars.
var ErrNoData = errors.New("no price data")
