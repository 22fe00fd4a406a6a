package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"dcalab/internal/domain"
	"dcalab/internal/portfolio"
)

// stubStrategy buys amount split by weight on the listed date indices.
type stubStrategy struct {
	name   string
	amount float64
	on     []int
	diag   []domain.Series
}

func (s *stubStrategy) Name() string { return s.name }
func (s *stubStrategy) Kind() Kind   { return KindMonthly }
func (s *stubStrategy) Run(table *domain.PriceTable, weights domain.Weights) (*Result, error) {
	l := portfolio.NewLedger(weights.Tickers())
	for _, i := range s.on {
		BuyAll(l, table, weights, i, s.amount)
	}
	return &Result{Ledger: l, Diagnostics: s.diag}, nil
}

func testTable(t *testing.T) *domain.PriceTable {
	t.Helper()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2), start.AddDate(0, 0, 3)}
	tbl, err := domain.NewPriceTable(dates, []string{"A", "B"}, [][]float64{
		{10, 12, 9, 11},
		{20, 20, 18, 22},
	})
	if err != nil {
		t.Fatalf("NewPriceTable: %v", err)
	}
	return tbl
}

var testWeights = domain.Weights{{Ticker: "A", Weight: 0.6}, {Ticker: "B", Weight: 0.4}}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	s := &stubStrategy{name: "test-strategy"}

	r.Register(s)

	got, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "test-strategy" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "beta"})
	r.Register(&stubStrategy{name: "alpha"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"strat1", KindMonthly},
		{"STRAT2", KindRollingDrawdown},
		{" strat3 ", KindPeakDrawdown},
		{"peak_drawdown", KindPeakDrawdown},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "strat4"} {
		if _, err := ParseKind(bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseKind(%q) error = %v, want ErrInvalidConfig", bad, err)
		}
	}
}

func TestPayout(t *testing.T) {
	fixed := Payout{Mode: PayoutFixed, Fixed: 50, K: 1000}
	if got, _ := fixed.Amount(0.2); got != 50 {
		t.Errorf("fixed Amount = %v, want 50", got)
	}
	prop := Payout{Mode: PayoutProportional, K: 1000}
	if got, _ := prop.Amount(0.25); got != 250 {
		t.Errorf("proportional Amount = %v, want 250", got)
	}

	if _, err := ParsePayoutMode("Proportional"); err != nil {
		t.Errorf("ParsePayoutMode is case-insensitive, got %v", err)
	}
	bad := Payout{Mode: "linear"}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate(bad mode) = %v, want ErrInvalidConfig", err)
	}
	if _, err := bad.Amount(0.1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Amount(bad mode) = %v, want ErrInvalidConfig", err)
	}
	if err := RequireNonNegative("x", math.NaN()); err == nil {
		t.Error("RequireNonNegative(NaN) returned nil")
	}
}

func TestSyntheticIndex(t *testing.T) {
	tbl := testTable(t)
	idx := SyntheticIndex(tbl, testWeights)

	// day1: 0.6*0.2 + 0.4*0 = 0.12
	// day2: 0.6*(-0.25) + 0.4*(-0.1) = -0.19
	want := []float64{1, 1.12, 1.12 * 0.81}
	for i, w := range want {
		if math.Abs(idx[i]-w) > 1e-12 {
			t.Errorf("index[%d] = %v, want %v", i, idx[i], w)
		}
	}
}

func TestSyntheticIndex_ZeroPrice(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	}
	tbl, err := domain.NewPriceTable(dates, []string{"A"}, [][]float64{{0, 10, 11}})
	if err != nil {
		t.Fatal(err)
	}
	idx := SyntheticIndex(tbl, domain.Weights{{Ticker: "A", Weight: 1}})
	if idx[1] != 1 {
		t.Errorf("return from a zero close must count as 0, index[1] = %v", idx[1])
	}
	if math.Abs(idx[2]-1.1) > 1e-12 {
		t.Errorf("index[2] = %v, want 1.1", idx[2])
	}
}

func TestRollingReturnAndTrigger(t *testing.T) {
	idx := []float64{1, 0.95, 0.9, 0.99}
	roll := RollingReturn(idx, 2)
	if roll[0] != 0 || roll[1] != 0 {
		t.Errorf("warm-up values = %v, want zeros", roll[:2])
	}
	if math.Abs(roll[2]+0.1) > 1e-12 {
		t.Errorf("roll[2] = %v, want -0.1", roll[2])
	}
	trig := TriggerSeries(roll, 0.1)
	if trig[2] != 1 || trig[3] != 0 {
		t.Errorf("TriggerSeries = %v", trig)
	}
}

func TestEvaluate(t *testing.T) {
	tbl := testTable(t)
	s := &stubStrategy{name: "stub", amount: 100, on: []int{0, 2}}
	res, err := Evaluate(tbl, testWeights, s)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	wantCols := []string{ColValue, ColContrib, ColCumContrib, ColDrawdown, "units_A", "units_B", ColUnitsTotal}
	if len(res.TimeSeries.Columns) != len(wantCols) {
		t.Fatalf("got %d columns, want %d", len(res.TimeSeries.Columns), len(wantCols))
	}
	for i, name := range wantCols {
		if res.TimeSeries.Columns[i].Name != name {
			t.Errorf("column %d = %q, want %q", i, res.TimeSeries.Columns[i].Name, name)
		}
	}

	cum, _ := res.TimeSeries.Column(ColCumContrib)
	if cum[3] != 200 {
		t.Errorf("cumulative contributions = %v, want 200", cum[3])
	}
	contrib, _ := res.TimeSeries.Column(ColContrib)
	if contrib[0] != 100 || contrib[1] != 0 || contrib[2] != 100 {
		t.Errorf("contribution = %v", contrib)
	}

	m := res.Metrics
	if m.Strategy != "stub" || m.Start != "2024-01-02" || m.End != "2024-01-05" {
		t.Errorf("metrics header = %+v", m)
	}
	if m.NumTrades != 4 {
		t.Errorf("NumTrades = %d, want 4", m.NumTrades)
	}
	if m.TotalContributions != 200 {
		t.Errorf("TotalContributions = %v, want 200", m.TotalContributions)
	}
	if m.MaxDrawdownPct > 0 {
		t.Errorf("MaxDrawdownPct = %v, want <= 0", m.MaxDrawdownPct)
	}
	if m.MaxDDPeak > m.MaxDDTrough {
		t.Errorf("peak %s after trough %s", m.MaxDDPeak, m.MaxDDTrough)
	}
	value, _ := res.TimeSeries.Column(ColValue)
	wantSimple := (value[3] - 200) / 200 * 100
	if math.Abs(float64(m.SimpleReturnPct)-wantSimple) > 1e-9 {
		t.Errorf("SimpleReturnPct = %v, want %v", m.SimpleReturnPct, wantSimple)
	}
}

func TestEvaluate_Diagnostics(t *testing.T) {
	tbl := testTable(t)
	s := &stubStrategy{name: "stub", diag: []domain.Series{{Name: "signal", Values: []float64{0, 1, 0, 1}}}}
	res, err := Evaluate(tbl, testWeights, s)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	last := res.TimeSeries.Columns[len(res.TimeSeries.Columns)-1]
	if last.Name != "signal" {
		t.Errorf("last column = %q, want signal", last.Name)
	}

	s.diag = []domain.Series{{Name: "short", Values: []float64{1}}}
	if _, err := Evaluate(tbl, testWeights, s); err == nil {
		t.Error("expected error for misaligned diagnostic")
	}
}

func TestEvaluate_NoTradesYieldsNaN(t *testing.T) {
	tbl := testTable(t)
	res, err := Evaluate(tbl, testWeights, &stubStrategy{name: "idle"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	m := res.Metrics
	if !m.SimpleReturnPct.IsNaN() {
		t.Errorf("SimpleReturnPct = %v, want NaN", m.SimpleReturnPct)
	}
	if !m.IRRAnnualized.IsNaN() {
		t.Errorf("IRRAnnualized = %v, want NaN", m.IRRAnnualized)
	}
	if !m.MaxDrawdownPct.IsNaN() || m.MaxDDPeak != "" || m.MaxDDTrough != "" {
		t.Errorf("drawdown = %v %q %q, want NaN and empty dates", m.MaxDrawdownPct, m.MaxDDPeak, m.MaxDDTrough)
	}

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(b, []byte(`"irr_annualized":"NaN"`)) {
		t.Errorf("metrics JSON = %s", b)
	}
	var back MetricsRecord
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.IRRAnnualized.IsNaN() {
		t.Errorf("round trip lost NaN: %v", back.IRRAnnualized)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	tbl := testTable(t)
	s := &stubStrategy{name: "stub", amount: 70, on: []int{1, 2, 3}}

	encode := func() []byte {
		res, err := Evaluate(tbl, testWeights, s)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		b, err := json.Marshal(struct {
			Trades  []domain.Trade
			Metrics MetricsRecord
		}{res.Trades, res.Metrics})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		return b
	}
	if a, b := encode(), encode(); !bytes.Equal(a, b) {
		t.Errorf("runs differ:\n%s\n%s", a, b)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tbl := testTable(t)
	s := &stubStrategy{name: "stub"}

	empty, err := domain.NewPriceTable(nil, []string{"A"}, [][]float64{{}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Evaluate(empty, testWeights, s); !errors.Is(err, domain.ErrNoData) {
		t.Errorf("empty table error = %v, want ErrNoData", err)
	}

	missing := domain.Weights{{Ticker: "C", Weight: 1}}
	if _, err := Evaluate(tbl, missing, s); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing ticker error = %v, want ErrInvalidConfig", err)
	}
}

type fakeProvider struct {
	table *domain.PriceTable
	err   error
	calls int
}

func (f *fakeProvider) Load(_ context.Context, _ []string, _, _ time.Time) (*domain.PriceTable, error) {
	f.calls++
	return f.table, f.err
}

func TestBacktesterRun(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubStrategy{name: "stub", amount: 100, on: []int{0}})
	prov := &fakeProvider{table: testTable(t)}
	bt := NewBacktester(prov, reg, nil)

	res, err := bt.Run(context.Background(), Request{Strategy: "stub", Weights: testWeights})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Metrics.NumTrades != 2 {
		t.Errorf("NumTrades = %d, want 2", res.Metrics.NumTrades)
	}
}

func TestBacktesterRun_ConfigErrorsBeforeFetch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubStrategy{name: "stub"})
	prov := &fakeProvider{table: testTable(t)}
	bt := NewBacktester(prov, reg, nil)

	if _, err := bt.Run(context.Background(), Request{Strategy: "nope", Weights: testWeights}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("unknown strategy error = %v, want ErrInvalidConfig", err)
	}
	bad := domain.Weights{{Ticker: "A", Weight: -1}}
	if _, err := bt.Run(context.Background(), Request{Strategy: "stub", Weights: bad}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad weights error = %v, want ErrInvalidConfig", err)
	}
	if prov.calls != 0 {
		t.Errorf("provider called %d times, want 0", prov.calls)
	}
}

func TestBacktesterRun_DataError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubStrategy{name: "stub"})
	prov := &fakeProvider{err: domain.ErrNoData}
	bt := NewBacktester(prov, reg, nil)

	_, err := bt.Run(context.Background(), Request{Strategy: "stub", Weights: testWeights})
	if !errors.Is(err, domain.ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}
