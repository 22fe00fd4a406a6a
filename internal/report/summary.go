package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"dcalab/internal/strategy"
)

// Summary renders rec as an aligned two-column table for the console. Money
// is rounded to cents, returns are shown as percentages.
func Summary(out io.Writer, rec strategy.MetricsRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	dd := pct(float64(rec.MaxDrawdownPct), false)
	if rec.MaxDDPeak != "" {
		dd += fmt.Sprintf(" (%s -> %s)", rec.MaxDDPeak, rec.MaxDDTrough)
	}

	rows := [][2]string{
		{"strategy", rec.Strategy},
		{"period", rec.Start + " .. " + rec.End},
		{"contributions", money(float64(rec.TotalContributions))},
		{"terminal value", money(float64(rec.TerminalValue))},
		{"simple return", pct(float64(rec.SimpleReturnPct), false)},
		{"TWR (ann.)", pct(float64(rec.TWRAnnualized), true)},
		{"IRR (ann.)", pct(float64(rec.IRRAnnualized), true)},
		{"CAGR", pct(float64(rec.CAGR), true)},
		{"max drawdown", dd},
		{"trades", fmt.Sprintf("%d", rec.NumTrades)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
	}
	return w.Flush()
}

// SweepTable renders one line per record with the headline metrics.
func SweepTable(out io.Writer, recs []strategy.MetricsRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Strategy\tContrib\tValue\tReturn\tIRR\tMaxDD\tTrades")
	fmt.Fprintln(w, "--------\t-------\t-----\t------\t---\t-----\t------")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.Strategy,
			money(float64(r.TotalContributions)),
			money(float64(r.TerminalValue)),
			pct(float64(r.SimpleReturnPct), false),
			pct(float64(r.IRRAnnualized), true),
			pct(float64(r.MaxDrawdownPct), false),
			r.NumTrades,
		)
	}
	return w.Flush()
}

// money formats v as dollars with two decimals.
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// pct formats v as a percentage with two decimals. fraction marks values
// stored as fractions (0.07) rather than percent (7.0).
func pct(v float64, fraction bool) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v)
	if fraction {
		d = d.Shift(2)
	}
	return d.StringFixed(2) + "%"
}
