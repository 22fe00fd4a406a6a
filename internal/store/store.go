// Package store defines storage interfaces for the daily price cache and the
// catalog of completed backtest runs, with Parquet and SQLite implementations.
package store

import (
	"context"
	"errors"
	"time"

	"dcalab/internal/domain"
	"dcalab/internal/strategy"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market whose calendar
	// date lies within [start, end], sorted by timestamp.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)

	// HistoryStart returns the first date a source had bars for symbol, or
	// the zero time when none was recorded.
	HistoryStart(ctx context.Context, symbol string, market domain.Market) (time.Time, error)

	// SetHistoryStart records the first date a source had bars for symbol.
	SetHistoryStart(ctx context.Context, symbol string, market domain.Market, day time.Time) error
}

// Run is one catalogued backtest: its identity plus the metrics record it
// produced.
type Run struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	Tickers      []string
	Weights      []float64
	ConfigSHA256 string
	Metrics      strategy.MetricsRecord
}

// RunStore persists and retrieves catalogued runs.
type RunStore interface {
	// SaveRun inserts a run. An empty ID is replaced by a fresh one, which is
	// returned.
	SaveRun(ctx context.Context, run *Run) (string, error)

	// GetRun retrieves a run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit. A
	// non-positive limit returns all runs.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
