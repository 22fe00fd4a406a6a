// Package prices loads date-aligned close-price tables, serving from the
// local Parquet cache when it covers the request and falling back to remote
// sources with retry and circuit breaking otherwise.
package prices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"dcalab/internal/domain"
	"dcalab/internal/gather"
	"dcalab/internal/store"
	"dcalab/internal/util"
)

// ErrNoData is returned when a ticker has no data from the cache or any
// source.
var ErrNoData = domain.ErrNoData

// Source selectors accepted by SelectSources.
const (
	SourceAuto   = "auto"
	SourceAlpaca = "alpaca"
	SourceStooq  = "stooq"
)

// Options tunes a Loader.
type Options struct {
	Retries     int           // attempts per source, default 3
	BaseDelay   time.Duration // first backoff delay, default 3s
	SlackDays   int           // cache coverage tolerance at each edge, default 7
	Refresh     bool          // ignore cached bars and always fetch
	TripAfter   uint32        // consecutive failures that open a breaker, default 3
	OpenPeriod  time.Duration // how long an open breaker rejects calls, default 1m
	Concurrency int           // tickers loaded in parallel, default 4
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 3 * time.Second
	}
	if o.SlackDays <= 0 {
		o.SlackDays = 7
	}
	if o.TripAfter == 0 {
		o.TripAfter = 3
	}
	if o.OpenPeriod <= 0 {
		o.OpenPeriod = time.Minute
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

type guardedSource struct {
	src gather.Source
	cb  *gobreaker.CircuitBreaker
}

// Loader implements strategy.PriceProvider.
type Loader struct {
	cache   store.BarStore
	sources []guardedSource
	opts    Options
	now     func() time.Time
	log     *slog.Logger
}

// SelectSources resolves a source selector to an ordered source list. auto
// tries alpaca first, then stooq; a nil alpaca source (no credentials) is
// skipped under auto and an error otherwise.
func SelectSources(selector string, alpaca, stooq gather.Source) ([]gather.Source, error) {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case SourceAuto, "":
		var out []gather.Source
		if alpaca != nil {
			out = append(out, alpaca)
		}
		if stooq != nil {
			out = append(out, stooq)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("no price sources available")
		}
		return out, nil
	case SourceAlpaca:
		if alpaca == nil {
			return nil, fmt.Errorf("source alpaca requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
		return []gather.Source{alpaca}, nil
	case SourceStooq:
		if stooq == nil {
			return nil, fmt.Errorf("source stooq is not configured")
		}
		return []gather.Source{stooq}, nil
	default:
		return nil, fmt.Errorf("unknown source %q (want auto, alpaca or stooq)", selector)
	}
}

// NewLoader creates a Loader reading through cache (which may be nil) and
// falling back to sources in order.
func NewLoader(cache store.BarStore, sources []gather.Source, opts Options, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()

	l := &Loader{
		cache: cache,
		opts:  opts,
		now:   time.Now,
		log:   log.With("component", "prices"),
	}
	for _, src := range sources {
		name := src.Name()
		l.sources = append(l.sources, guardedSource{
			src: src,
			cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    name,
				Timeout: opts.OpenPeriod,
				ReadyToTrip: func(c gobreaker.Counts) bool {
					return c.ConsecutiveFailures >= opts.TripAfter
				},
				// An empty answer is the source working correctly.
				IsSuccessful: func(err error) bool {
					return err == nil || errors.Is(err, gather.ErrEmpty)
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					l.log.Warn("source breaker", "source", name, "from", from.String(), "to", to.String())
				},
			}),
		})
	}
	return l
}

// Load returns a close-price table covering every ticker over [start, end].
// A zero end means up to today. Any ticker without data fails the whole
// load with ErrNoData.
func (l *Loader) Load(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceTable, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("loading prices: no tickers")
	}
	loaded := make([][]domain.Bar, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, t := range tickers {
		i, t := i, t
		g.Go(func() error {
			b, err := l.loadTicker(gctx, t, start, end, l.opts.Refresh)
			if err != nil {
				return err
			}
			loaded[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bars := make(map[string][]domain.Bar, len(tickers))
	for i, t := range tickers {
		bars[t] = loaded[i]
	}
	return TableFromBars(tickers, bars)
}

// Fetch refreshes the cache for tickers from the remote sources regardless
// of what is cached, returning the number of bars fetched per ticker.
func (l *Loader) Fetch(ctx context.Context, tickers []string, start, end time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(tickers))
	for _, t := range tickers {
		b, err := l.loadTicker(ctx, t, start, end, true)
		if err != nil {
			return counts, err
		}
		counts[t] = len(b)
	}
	return counts, nil
}

// CachedSymbols lists the tickers that have bars in the cache.
func (l *Loader) CachedSymbols(ctx context.Context) ([]string, error) {
	if l.cache == nil {
		return nil, fmt.Errorf("listing cached symbols: no cache configured")
	}
	return l.cache.ListSymbols(ctx, domain.MarketUS)
}

func (l *Loader) loadTicker(ctx context.Context, ticker string, start, end time.Time, refresh bool) ([]domain.Bar, error) {
	last := gather.DateRange{End: end}.EndOrNow(l.now())
	r := gather.DateRange{Start: start, End: last}

	if l.cache != nil && !refresh {
		// A ticker listed after start is covered from its first session on.
		from := start
		if hs, err := l.cache.HistoryStart(ctx, ticker, domain.MarketUS); err != nil {
			l.log.Warn("history start read failed", "ticker", ticker, "err", err)
		} else if hs.After(from) {
			from = hs
		}

		cached, err := l.cache.ReadBars(ctx, ticker, domain.MarketUS, start, last)
		if err != nil {
			l.log.Warn("cache read failed", "ticker", ticker, "err", err)
		} else if n := len(cached); n > 0 &&
			util.CoversRange(domain.Day(cached[0].Timestamp), domain.Day(cached[n-1].Timestamp), from, last, l.opts.SlackDays) {
			l.log.Debug("cache hit", "ticker", ticker, "bars", n)
			return cached, nil
		}
	}

	if len(l.sources) == 0 {
		return nil, fmt.Errorf("ticker %s: not cached and no sources configured: %w", ticker, ErrNoData)
	}

	var errs []error
	for _, gs := range l.sources {
		bars, err := l.fetch(ctx, gs, ticker, r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.log.Warn("source failed", "source", gs.src.Name(), "ticker", ticker, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", gs.src.Name(), err))
			continue
		}
		bars = clip(bars, start, last)
		if len(bars) == 0 {
			errs = append(errs, fmt.Errorf("%s: %w", gs.src.Name(), gather.ErrEmpty))
			continue
		}

		first := firstDay(bars)
		late := first.After(domain.Day(start).AddDate(0, 0, l.opts.SlackDays))
		if late {
			l.log.Warn("source history starts after requested start",
				"source", gs.src.Name(), "ticker", ticker,
				"requested", start.Format(domain.DateLayout), "first", first.Format(domain.DateLayout))
		}

		if l.cache != nil {
			if err := l.cache.WriteBars(ctx, domain.MarketUS, bars); err != nil {
				l.log.Warn("cache write failed", "ticker", ticker, "err", err)
			} else if late {
				if err := l.cache.SetHistoryStart(ctx, ticker, domain.MarketUS, first); err != nil {
					l.log.Warn("history start write failed", "ticker", ticker, "err", err)
				}
			}
		}
		l.log.Info("fetched", "source", gs.src.Name(), "ticker", ticker, "bars", len(bars))
		return bars, nil
	}
	return nil, fmt.Errorf("ticker %s: all sources failed: %w: %w", ticker, ErrNoData, errors.Join(errs...))
}

// fetch calls the source through its breaker, retrying transient errors with
// exponential backoff.
func (l *Loader) fetch(ctx context.Context, gs guardedSource, ticker string, r gather.DateRange) ([]domain.Bar, error) {
	out, err := gs.cb.Execute(func() (interface{}, error) {
		var bars []domain.Bar
		err := util.Retry(ctx, l.opts.Retries, l.opts.BaseDelay, func() error {
			b, err := gs.src.FetchDaily(ctx, ticker, r)
			if err == nil {
				bars = b
				return nil
			}
			if errors.Is(err, gather.ErrEmpty) || ctx.Err() != nil {
				return util.Permanent(err)
			}
			return err
		})
		return bars, err
	})
	if err != nil {
		return nil, err
	}
	return out.([]domain.Bar), nil
}

func firstDay(bars []domain.Bar) time.Time {
	first := domain.Day(bars[0].Timestamp)
	for _, b := range bars[1:] {
		if d := domain.Day(b.Timestamp); d.Before(first) {
			first = d
		}
	}
	return first
}

// clip keeps the bars whose calendar date lies in [start, end].
func clip(bars []domain.Bar, start, end time.Time) []domain.Bar {
	from, to := domain.Day(start), domain.Day(end)
	out := bars[:0:0]
	for _, b := range bars {
		d := domain.Day(b.Timestamp)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
