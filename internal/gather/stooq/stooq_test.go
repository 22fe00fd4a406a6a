package stooq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dcalab/internal/gather"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2024-01-03,470.43,471.19,468.17,468.79,103585918
2024-01-02,472.16,473.67,470.49,472.65,123623739
`

func TestParseCSV(t *testing.T) {
	bars, err := parseCSV(strings.NewReader(sampleCSV), "SPY")
	if err != nil {
		t.Fatalf("parseCSV: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if got := bars[0].Timestamp.Format("2006-01-02"); got != "2024-01-02" {
		t.Errorf("bars not sorted: first = %s", got)
	}
	if bars[0].Close != 472.65 || bars[0].Volume != 123623739 || bars[0].Symbol != "SPY" {
		t.Errorf("bar = %+v", bars[0])
	}
}

func TestParseCSV_NoData(t *testing.T) {
	bars, err := parseCSV(strings.NewReader("No data"), "XXXX")
	if err != nil {
		t.Fatalf("parseCSV: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("got %d bars, want 0", len(bars))
	}

	if _, err := parseCSV(strings.NewReader("foo,bar\n1,2\n"), "X"); err == nil {
		t.Error("expected error for unexpected header")
	}
}

func TestFetchDaily(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Query().Get("s") == "none.us" {
			w.Write([]byte("No data"))
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	s := NewSource(srv.URL+"/", 0)
	if s.Name() != "stooq" {
		t.Errorf("Name() = %q, want stooq", s.Name())
	}

	r := gather.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	bars, err := s.FetchDaily(context.Background(), "SPY", r)
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("got %d bars, want 2", len(bars))
	}
	for _, want := range []string{"s=spy.us", "d1=20240101", "d2=20240131", "i=d"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}

	_, err = s.FetchDaily(context.Background(), "NONE", r)
	if !errors.Is(err, gather.ErrEmpty) {
		t.Errorf("FetchDaily(NONE) error = %v, want ErrEmpty", err)
	}
}

func TestFetchDaily_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewSource(srv.URL, 0).FetchDaily(context.Background(), "SPY", gather.DateRange{Start: time.Now().AddDate(0, -1, 0)})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status 429", err)
	}
}
