// Package us implements the Alpaca market-data source for US equities and
// ETFs.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"dcalab/internal/domain"
	"dcalab/internal/gather"
)

// Compile-time interface check.
var _ gather.Source = (*AlpacaSource)(nil)

// AlpacaSource fetches adjusted daily bars via the Alpaca market-data API.
type AlpacaSource struct {
	client *marketdata.Client
	feed   marketdata.Feed
	log    *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials. An
// empty dataURL uses the client default and an empty feed uses "iex", which
// free accounts can query.
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}

	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   marketdata.Feed(feed),
		log:    slog.Default().With("source", "alpaca"),
	}
}

// Name returns the source identifier.
func (s *AlpacaSource) Name() string { return "alpaca" }

// FetchDaily fetches daily bars for symbol with all corporate-action
// adjustments applied, so Close is comparable across splits and dividends.
func (s *AlpacaSource) FetchDaily(ctx context.Context, symbol string, r gather.DateRange) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      r.Start,
		Feed:       s.feed,
		Adjustment: marketdata.All,
	}
	if !r.End.IsZero() {
		// End is inclusive by date; the API bound is an instant.
		req.End = domain.Day(r.End).Add(24*time.Hour - time.Second)
	}

	alpacaBars, err := s.client.GetBars(strings.ToUpper(symbol), req)
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	if len(alpacaBars) == 0 {
		return nil, fmt.Errorf("alpaca %s: %w", symbol, gather.ErrEmpty)
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  ab.Timestamp,
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	s.log.Debug("fetched", "symbol", symbol, "bars", len(bars))
	return bars, nil
}
