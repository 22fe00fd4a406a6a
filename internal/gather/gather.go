// Package gather defines the remote daily-price sources the price loader
// falls back to when the local cache cannot serve a request.
package gather

import (
	"context"
	"errors"
	"time"

	"dcalab/internal/domain"
)

// ErrEmpty is returned by a Source that answered successfully but had no bars
// for the requested symbol and range.
var ErrEmpty = errors.New("source returned no bars")

// Source fetches daily bars for one symbol from a remote provider.
type Source interface {
	// Name returns the source identifier used in configuration and logs.
	Name() string
	// FetchDaily returns split- and dividend-adjusted daily bars for symbol
	// whose dates lie within r, sorted ascending. An open-ended range has a
	// zero End.
	FetchDaily(ctx context.Context, symbol string, r DateRange) ([]domain.Bar, error)
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// EndOrNow returns End, or now truncated to the day when End is zero.
func (r DateRange) EndOrNow(now time.Time) time.Time {
	if r.End.IsZero() {
		return domain.Day(now)
	}
	return r.End
}
