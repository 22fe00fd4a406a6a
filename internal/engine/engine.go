// Package engine runs many independent backtests over one price table on a
// bounded worker pool and collects their outcomes.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dcalab/internal/domain"
	"dcalab/internal/strategy"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// Outcome is the result of evaluating one strategy. Exactly one of Result and
// Err is set.
type Outcome struct {
	Strategy string
	Result   *strategy.BacktestResult
	Err      error
}

// Engine evaluates strategies concurrently. Runs share the read-only price
// table and nothing else.
type Engine struct {
	workers int
	log     *slog.Logger
}

// NewEngine creates an Engine with the given number of workers. A
// non-positive count falls back to DefaultWorkers.
func NewEngine(workers int, log *slog.Logger) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		workers: workers,
		log:     log.With("component", "sweep"),
	}
}

// Workers returns the pool size.
func (e *Engine) Workers() int { return e.workers }

// Sweep evaluates every strategy against table and weights. Outcomes are
// returned in the order of strats. Once ctx is cancelled no further jobs are
// started and the unstarted ones report ctx.Err().
func (e *Engine) Sweep(ctx context.Context, table *domain.PriceTable, weights domain.Weights, strats []strategy.Strategy) []Outcome {
	out := make([]Outcome, len(strats))
	if len(strats) == 0 {
		return out
	}

	jobCh := make(chan int, len(strats))
	for i := range strats {
		jobCh <- i
	}
	close(jobCh)

	var (
		wg       sync.WaitGroup
		done     atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)

	workers := min(e.workers, len(strats))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				s := strats[idx]
				if err := ctx.Err(); err != nil {
					out[idx] = Outcome{Strategy: s.Name(), Err: err}
					continue
				}

				res, err := strategy.Evaluate(table, weights, s)
				out[idx] = Outcome{Strategy: s.Name(), Result: res, Err: err}
				if err != nil {
					failed.Add(1)
					e.log.Error("run failed", "strategy", s.Name(), "err", err)
					continue
				}
				done.Add(1)
				e.log.Debug("run done", "strategy", s.Name(), "trades", res.Metrics.NumTrades)
			}
		}()
	}

	wg.Wait()

	e.log.Info("sweep complete",
		"runs", len(strats),
		"ok", done.Load(),
		"failed", failed.Load(),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return out
}

// Metrics returns the metrics records of the successful outcomes, in order.
func Metrics(outcomes []Outcome) []strategy.MetricsRecord {
	recs := make([]strategy.MetricsRecord, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			recs = append(recs, o.Result.Metrics)
		}
	}
	return recs
}
