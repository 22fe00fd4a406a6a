package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"dcalab/internal/domain"
)

// LatestFinishedTradingDay returns the most recent trading day whose regular
// session plus extended hours has ended (after 20:05 ET). It uses the Alpaca
// trading calendar API and is used to pin an open-ended fetch to a date.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}

	now := time.Now().In(et)
	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}

	days := make([]string, len(calendar))
	for i, c := range calendar {
		days[i] = c.Date
	}
	return latestFinished(days, now)
}

// latestFinished picks the last calendar date that is before now, or today
// once now has passed the 20:05 ET cutoff. now must be in ET.
func latestFinished(days []string, now time.Time) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}

	today := now.Format(domain.DateLayout)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, now.Location())

	for i := len(days) - 1; i >= 0; i-- {
		if days[i] == today {
			if now.After(cutoff) {
				t, _ := time.Parse(domain.DateLayout, days[i])
				return t, nil
			}
			continue
		}
		d, err := time.Parse(domain.DateLayout, days[i])
		if err != nil {
			continue
		}
		if d.Before(now) {
			return d, nil
		}
	}

	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
