package us

import (
	"testing"
	"time"
)

func TestAlpacaSourceName(t *testing.T) {
	s := NewAlpacaSource("key", "secret", "https://data.alpaca.markets", "")
	if got := s.Name(); got != "alpaca" {
		t.Errorf("AlpacaSource.Name() = %q, want %q", got, "alpaca")
	}
	if s.feed != "iex" {
		t.Errorf("default feed = %q, want iex", s.feed)
	}
}

func TestLatestFinished(t *testing.T) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tz data: %v", err)
	}
	days := []string{"2024-06-10", "2024-06-11", "2024-06-12"}

	// Before the cutoff today's session is not finished yet.
	now := time.Date(2024, 6, 12, 15, 0, 0, 0, et)
	got, err := latestFinished(days, now)
	if err != nil {
		t.Fatalf("latestFinished: %v", err)
	}
	if want := "2024-06-11"; got.Format("2006-01-02") != want {
		t.Errorf("before cutoff = %s, want %s", got.Format("2006-01-02"), want)
	}

	now = time.Date(2024, 6, 12, 21, 0, 0, 0, et)
	got, err = latestFinished(days, now)
	if err != nil {
		t.Fatalf("latestFinished: %v", err)
	}
	if want := "2024-06-12"; got.Format("2006-01-02") != want {
		t.Errorf("after cutoff = %s, want %s", got.Format("2006-01-02"), want)
	}

	if _, err := latestFinished(nil, now); err == nil {
		t.Error("latestFinished(nil) should fail")
	}
}
