// Package report writes the artifacts of a backtest run: the per-date time
// series and trade ledger as CSV, the metrics record as JSON, and optionally a
// Parquet copy of the trades and the configuration that produced the run.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"dcalab/internal/domain"
	"dcalab/internal/store"
	"dcalab/internal/strategy"
)

// Paths lists the files written for one run.
type Paths struct {
	TimeSeries    string
	Trades        string
	Metrics       string
	TradesParquet string
	Config        string
}

// Files returns the non-empty paths in write order.
func (p Paths) Files() []string {
	var out []string
	for _, f := range []string{p.TimeSeries, p.Trades, p.Metrics, p.TradesParquet, p.Config} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Writer writes run artifacts under an output directory.
type Writer struct {
	dir           string
	tradesParquet bool
}

// NewWriter creates a Writer rooted at dir. When tradesParquet is set, each
// run also gets a <name>.trades.parquet file.
func NewWriter(dir string, tradesParquet bool) *Writer {
	return &Writer{dir: dir, tradesParquet: tradesParquet}
}

// WriteRun writes all artifacts of res prefixed with name. configPath, when
// non-empty, is copied verbatim to <name>.config.yml.
func (w *Writer) WriteRun(name string, res *strategy.BacktestResult, configPath string) (Paths, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating output dir: %w", err)
	}
	base := filepath.Join(w.dir, name)
	p := Paths{
		TimeSeries: base + ".timeseries.csv",
		Trades:     base + ".trades.csv",
		Metrics:    base + ".metrics.json",
	}

	if err := writeFile(p.TimeSeries, func(out io.Writer) error { return WriteTimeSeriesCSV(out, res.TimeSeries) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(p.Trades, func(out io.Writer) error { return WriteTradesCSV(out, res.Trades) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(p.Metrics, func(out io.Writer) error { return WriteMetricsJSON(out, res.Metrics) }); err != nil {
		return Paths{}, err
	}
	if w.tradesParquet {
		p.TradesParquet = base + ".trades.parquet"
		if err := store.WriteTradesFile(p.TradesParquet, res.Trades); err != nil {
			return Paths{}, err
		}
	}
	if configPath != "" {
		p.Config = base + ".config.yml"
		if err := CopyFile(configPath, p.Config); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

// WriteSweep writes one metrics row per record to <name>.sweep.csv.
func (w *Writer) WriteSweep(name string, recs []strategy.MetricsRecord) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(w.dir, name+".sweep.csv")
	if err := writeFile(path, func(out io.Writer) error { return WriteSweepCSV(out, recs) }); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTimeSeriesCSV writes a date column followed by every series column.
// NaN values are written as empty cells.
func WriteTimeSeriesCSV(out io.Writer, ts strategy.TimeSeries) error {
	cw := csv.NewWriter(out)

	header := make([]string, 0, len(ts.Columns)+1)
	header = append(header, "date")
	for _, c := range ts.Columns {
		header = append(header, c.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i, d := range ts.Dates {
		row[0] = d.Format(domain.DateLayout)
		for j, c := range ts.Columns {
			row[j+1] = formatF(c.Values[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes date,ticker,cash,units,price rows in ledger order.
func WriteTradesCSV(out io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"date", "ticker", "cash", "units", "price"}); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			t.Date.Format(domain.DateLayout), t.Ticker,
			formatF(t.Cash), formatF(t.Units), formatF(t.Price),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetricsJSON writes rec as indented JSON.
func WriteMetricsJSON(out io.Writer, rec strategy.MetricsRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	b = append(b, '\n')
	_, err = out.Write(b)
	return err
}

// ReadMetricsJSON parses a metrics file written by WriteMetricsJSON.
func ReadMetricsJSON(path string) (strategy.MetricsRecord, error) {
	var rec strategy.MetricsRecord
	b, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("decoding %s: %w", path, err)
	}
	return rec, nil
}

// WriteSweepCSV writes one row per metrics record using the JSON key names
// as the header.
func WriteSweepCSV(out io.Writer, recs []strategy.MetricsRecord) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{
		"strategy", "start", "end", "total_contributions", "terminal_value",
		"simple_return_pct", "twr_annualized", "irr_annualized", "cagr",
		"max_drawdown_pct", "max_dd_peak", "max_dd_trough", "num_trades",
	}); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write([]string{
			r.Strategy, r.Start, r.End,
			formatF(float64(r.TotalContributions)), formatF(float64(r.TerminalValue)),
			formatF(float64(r.SimpleReturnPct)), formatF(float64(r.TWRAnnualized)),
			formatF(float64(r.IRRAnnualized)), formatF(float64(r.CAGR)),
			formatF(float64(r.MaxDrawdownPct)), r.MaxDDPeak, r.MaxDDTrough,
			strconv.Itoa(r.NumTrades),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CopyFile copies src to dst, creating or truncating dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	return writeFile(dst, func(out io.Writer) error {
		_, err := io.Copy(out, in)
		return err
	})
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func formatF(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
