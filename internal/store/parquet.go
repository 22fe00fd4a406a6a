package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"dcalab/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using Parquet files on disk. It is the
// local price cache.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// TradeRecord is the Parquet schema for a ledger trade.
type TradeRecord struct {
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Ticker string  `parquet:"ticker"`
	Cash   float64 `parquet:"cash"`
	Units  float64 `parquet:"units"`
	Price  float64 `parquet:"price"`
}

// HistoryRecord is the Parquet schema for a symbol's recorded history start.
type HistoryRecord struct {
	Symbol string `parquet:"symbol"`
	Start  int64  `parquet:"start,timestamp(millisecond)"` // Unix ms
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bars to Parquet files organized by symbol and year,
// merging with whatever is already on disk. Each symbol+year combination
// produces a separate file at:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, market domain.Market, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		k := key{symbol: sym, year: b.Timestamp.UTC().Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:     sym,
			Timestamp:  b.Timestamp.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, market, k.year)

		// A missing file simply means nothing to merge.
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bars from Parquet files for the given symbol whose UTC
// calendar date lies in [start, end].
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error) {
	from, to := domain.Day(start), domain.Day(end)

	var bars []domain.Bar
	for year := from.Year(); year <= to.Year(); year++ {
		path := s.barPath(symbol, market, year)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			d := domain.Day(ts)
			if d.Before(from) || d.After(to) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     r.Symbol,
				Timestamp:  ts,
				Open:       r.Open,
				High:       r.High,
				Low:        r.Low,
				Close:      r.Close,
				Volume:     r.Volume,
				TradeCount: r.TradeCount,
				VWAP:       r.VWAP,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data in the given market.
func (s *ParquetStore) ListSymbols(_ context.Context, market domain.Market) ([]string, error) {
	dir := filepath.Join(s.DataDir, string(market), "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// HistoryStart reads <DataDir>/<market>/daily/<SYMBOL>/history.parquet.
func (s *ParquetStore) HistoryStart(_ context.Context, symbol string, market domain.Market) (time.Time, error) {
	path := s.historyPath(symbol, market)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return time.Time{}, nil
	}
	records, err := readParquetFile[HistoryRecord](path)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(records[0].Start).UTC(), nil
}

// SetHistoryStart overwrites the recorded history start of symbol.
func (s *ParquetStore) SetHistoryStart(_ context.Context, symbol string, market domain.Market, day time.Time) error {
	path := s.historyPath(symbol, market)
	rec := []HistoryRecord{{Symbol: strings.ToUpper(symbol), Start: domain.Day(day).UnixMilli()}}
	if err := writeParquetFile(path, rec); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Ledger trade files
// ---------------------------------------------------------------------------

// WriteTradesFile writes a ledger's trades to a single Parquet file at path,
// preserving their order.
func WriteTradesFile(path string, trades []domain.Trade) error {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			Date:   t.Date.UnixMilli(),
			Ticker: t.Ticker,
			Cash:   t.Cash,
			Units:  t.Units,
			Price:  t.Price,
		}
	}
	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing trades to %s: %w", path, err)
	}
	return nil
}

// ReadTradesFile reads trades written by WriteTradesFile.
func ReadTradesFile(path string) ([]domain.Trade, error) {
	records, err := readParquetFile[TradeRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading trades from %s: %w", path, err)
	}
	trades := make([]domain.Trade, len(records))
	for i, r := range records {
		trades[i] = domain.Trade{
			Date:   time.UnixMilli(r.Date).UTC(),
			Ticker: r.Ticker,
			Cash:   r.Cash,
			Units:  r.Units,
			Price:  r.Price,
		}
	}
	return trades, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, market domain.Market, year int) string {
	return filepath.Join(s.DataDir, string(market), "daily", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func (s *ParquetStore) historyPath(symbol string, market domain.Market) string {
	return filepath.Join(s.DataDir, string(market), "daily", strings.ToUpper(symbol), "history.parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
