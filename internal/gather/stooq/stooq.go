// Package stooq implements a daily-price source backed by the stooq.com CSV
// download endpoint. US listings are addressed as "<ticker>.US".
package stooq

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"dcalab/internal/domain"
	"dcalab/internal/gather"
	"dcalab/internal/util"
)

// DefaultBaseURL is the stooq CSV download endpoint.
const DefaultBaseURL = "https://stooq.com/q/d/l/"

// Compile-time interface check.
var _ gather.Source = (*Source)(nil)

// Source fetches daily bars from stooq. Requests are throttled by a shared
// rate limiter.
type Source struct {
	baseURL string
	http    *http.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewSource creates a stooq Source. An empty baseURL uses DefaultBaseURL and
// a non-positive rateLimitPerMin disables throttling.
func NewSource(baseURL string, rateLimitPerMin int) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Source{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: util.NewRateLimiter(rateLimitPerMin),
		log:     slog.Default().With("source", "stooq"),
	}
}

// Name returns the source identifier.
func (s *Source) Name() string { return "stooq" }

// FetchDaily downloads the daily CSV for symbol over r.
func (s *Source) FetchDaily(ctx context.Context, symbol string, r gather.DateRange) ([]domain.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	end := r.EndOrNow(time.Now())
	q := url.Values{}
	q.Set("s", strings.ToLower(symbol)+".us")
	q.Set("d1", r.Start.Format("20060102"))
	q.Set("d2", end.Format("20060102"))
	q.Set("i", "d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stooq %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stooq %s: status %d: %s", symbol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	bars, err := parseCSV(resp.Body, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("stooq %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("stooq %s: %w", symbol, gather.ErrEmpty)
	}
	s.log.Debug("fetched", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// parseCSV reads stooq's Date,Open,High,Low,Close[,Volume] layout. A body of
// "No data" yields no bars.
func parseCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateIdx, okDate := col["date"]
	closeIdx, okClose := col["close"]
	if !okDate || !okClose {
		// stooq answers unknown symbols with a plain "No data" body.
		if len(header) == 1 && strings.EqualFold(strings.TrimSpace(header[0]), "no data") {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var bars []domain.Bar
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if len(rec) <= closeIdx || len(rec) <= dateIdx {
			continue
		}
		ts, err := time.Parse(domain.DateLayout, rec[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("parsing date %q: %w", rec[dateIdx], err)
		}
		closePx, err := strconv.ParseFloat(rec[closeIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing close %q: %w", rec[closeIdx], err)
		}
		bar := domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      field(rec, col, "open"),
			High:      field(rec, col, "high"),
			Low:       field(rec, col, "low"),
			Close:     closePx,
			Volume:    int64(field(rec, col, "volume")),
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// field returns the named numeric column, or 0 when absent or unparsable.
func field(rec []string, col map[string]int, name string) float64 {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return 0
	}
	v, err := strconv.ParseFloat(rec[i], 64)
	if err != nil {
		return 0
	}
	return v
}
