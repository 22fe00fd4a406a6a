package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dcalab/internal/domain"
	"dcalab/internal/metrics"
)

// Report column names.
const (
	ColValue       = "portfolio_value"
	ColContrib     = "contribution"
	ColCumContrib  = "cumulative_contributions"
	ColDrawdown    = "portfolio_drawdown"
	ColUnitsPrefix = "units_"
	ColUnitsTotal  = "units_total"
)

// TimeSeries is the per-date report table: one Series per column, all aligned
// with Dates.
type TimeSeries struct {
	Dates   []time.Time
	Columns []domain.Series
}

// Column returns the values of the named column.
func (ts *TimeSeries) Column(name string) ([]float64, bool) {
	for _, c := range ts.Columns {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// BacktestResult holds the three artifacts of a run.
type BacktestResult struct {
	TimeSeries TimeSeries
	Trades     []domain.Trade
	Metrics    MetricsRecord
}

// Evaluate drives strat over table with the given weights and assembles the
// report series and metrics. It is a pure function of its inputs.
func Evaluate(table *domain.PriceTable, weights domain.Weights, strat Strategy) (*BacktestResult, error) {
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("evaluating %s: %w", strat.Name(), domain.ErrNoData)
	}
	if err := weights.Validate(table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	res, err := strat.Run(table, weights)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", strat.Name(), err)
	}
	ledger := res.Ledger
	dates := table.Dates()
	n := len(dates)

	value := ledger.DailyValue(table)
	cashflows := ledger.DailyCashflows(dates)
	contrib := make([]float64, n)
	cumContrib := make([]float64, n)
	var total float64
	for i, cf := range cashflows {
		if -cf > 0 {
			contrib[i] = -cf
		}
		total += contrib[i]
		cumContrib[i] = total
	}

	ts := TimeSeries{
		Dates: dates,
		Columns: []domain.Series{
			{Name: ColValue, Values: value},
			{Name: ColContrib, Values: contrib},
			{Name: ColCumContrib, Values: cumContrib},
			{Name: ColDrawdown, Values: metrics.DrawdownSeries(value)},
		},
	}

	units := ledger.DailyUnits(dates)
	totalUnits := make([]float64, n)
	for i, tkr := range ledger.Tickers() {
		for d := range totalUnits {
			totalUnits[d] += units[i][d]
		}
		ts.Columns = append(ts.Columns, domain.Series{Name: ColUnitsPrefix + tkr, Values: units[i]})
	}
	ts.Columns = append(ts.Columns, domain.Series{Name: ColUnitsTotal, Values: totalUnits})

	for _, s := range res.Diagnostics {
		if len(s.Values) != n {
			return nil, fmt.Errorf("running %s: diagnostic %q has %d values for %d dates", strat.Name(), s.Name, len(s.Values), n)
		}
		ts.Columns = append(ts.Columns, s)
	}

	final := value[n-1]
	dd := metrics.MaxDrawdown(dates, value)
	rec := MetricsRecord{
		Strategy:           strat.Name(),
		Start:              dates[0].Format(domain.DateLayout),
		End:                dates[n-1].Format(domain.DateLayout),
		TotalContributions: Float(total),
		TerminalValue:      Float(final),
		SimpleReturnPct:    Float(metrics.SimpleReturnPct(final, total)),
		TWRAnnualized:      Float(metrics.TWRAnnualized(value, metrics.PeriodsPerYear)),
		IRRAnnualized:      Float(metrics.IRRAnnualized(cashflows, final, metrics.PeriodsPerYear)),
		CAGR:               Float(metrics.CAGR(value, metrics.PeriodsPerYear)),
		MaxDrawdownPct:     Float(dd.Pct * 100.0),
		NumTrades:          ledger.Len(),
	}
	if dd.OK {
		rec.MaxDDPeak = dd.Peak.Format(domain.DateLayout)
		rec.MaxDDTrough = dd.Trough.Format(domain.DateLayout)
	}

	return &BacktestResult{
		TimeSeries: ts,
		Trades:     ledger.Trades(),
		Metrics:    rec,
	}, nil
}

// PriceProvider returns a close-price table covering every requested ticker
// over [start, end], or fails.
type PriceProvider interface {
	Load(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceTable, error)
}

// Request describes one backtest run.
type Request struct {
	Strategy string
	Weights  domain.Weights
	Start    time.Time
	End      time.Time // zero means open-ended
}

// Backtester loads prices through a provider and evaluates a registered
// strategy over them.
type Backtester struct {
	prices   PriceProvider
	registry *Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester that reads prices from the given
// provider and looks up strategies in the provided registry.
func NewBacktester(prices PriceProvider, registry *Registry, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{
		prices:   prices,
		registry: registry,
		log:      log.With("component", "backtester"),
	}
}

// Run executes a backtest for the named strategy over the requested tickers
// and date range. Configuration is checked before any data is fetched.
func (bt *Backtester) Run(ctx context.Context, req Request) (*BacktestResult, error) {
	strat, ok := bt.registry.Get(req.Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: strategy %q not registered (have %v)", ErrInvalidConfig, req.Strategy, bt.registry.List())
	}
	if err := req.Weights.Validate(nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	table, err := bt.prices.Load(ctx, req.Weights.Tickers(), req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("loading prices: %w", err)
	}
	bt.log.Info("prices loaded",
		"tickers", req.Weights.Tickers(),
		"weights_sum", req.Weights.Sum(),
		"days", table.Len(),
		"start", table.Start().Format(domain.DateLayout),
		"end", table.End().Format(domain.DateLayout),
	)

	start := time.Now()
	res, err := Evaluate(table, req.Weights, strat)
	if err != nil {
		return nil, err
	}
	bt.log.Info("backtest done",
		"strategy", strat.Name(),
		"trades", res.Metrics.NumTrades,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}
