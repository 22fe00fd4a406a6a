package strategy

import (
	"encoding/json"
	"math"
	"strconv"
)

// Float is a float64 whose JSON form keeps NaN and infinities explicit as the
// strings "NaN", "Inf" and "-Inf".
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// IsNaN reports whether f is NaN.
func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

// MetricsRecord is the scalar summary of a completed run. It is built once and
// never mutated.
type MetricsRecord struct {
	Strategy           string `json:"strategy"`
	Start              string `json:"start"`
	End                string `json:"end"`
	TotalContributions Float  `json:"total_contributions"`
	TerminalValue      Float  `json:"terminal_value"`
	SimpleReturnPct    Float  `json:"simple_return_pct"`
	TWRAnnualized      Float  `json:"twr_annualized"`
	IRRAnnualized      Float  `json:"irr_annualized"`
	CAGR               Float  `json:"cagr"`
	MaxDrawdownPct     Float  `json:"max_drawdown_pct"`
	MaxDDPeak          string `json:"max_dd_peak"`
	MaxDDTrough        string `json:"max_dd_trough"`
	NumTrades          int    `json:"num_trades"`
}
