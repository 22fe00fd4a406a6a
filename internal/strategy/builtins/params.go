package builtins

import (
	"fmt"
	"strconv"

	"dcalab/internal/strategy"
)

// Params carries the numeric parameters of every strategy kind. Fields that
// do not apply to the selected kind are ignored.
type Params struct {
	// Name overrides the default strategy identifier when non-empty.
	Name string

	Amount    float64 // monthly: dollars per month
	Window    int     // rolling: trading days
	Threshold float64 // rolling, peak: drawdown fraction that triggers a buy
	Mode      string  // rolling, peak: "fixed" or "proportional"
	Fixed     float64 // rolling, peak: dollars per trigger in fixed mode
	K         float64 // rolling, peak: dollars per 1.0 of drawdown
}

// DefaultParams returns the parameter set used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Amount:    100,
		Window:    5,
		Threshold: 0.05,
		Mode:      string(strategy.PayoutFixed),
		Fixed:     50,
		K:         1000,
	}
}

func (p Params) payout() (strategy.Payout, error) {
	mode, err := strategy.ParsePayoutMode(p.Mode)
	if err != nil {
		return strategy.Payout{}, err
	}
	return strategy.Payout{Mode: mode, Fixed: p.Fixed, K: p.K}, nil
}

// FromParams builds the strategy of the given kind. Any invalid parameter is
// reported as a wrapped strategy.ErrInvalidConfig.
func FromParams(kind strategy.Kind, p Params) (strategy.Strategy, error) {
	switch kind {
	case strategy.KindMonthly:
		s, err := NewMonthlyFixed(p.Amount)
		if err != nil {
			return nil, err
		}
		if p.Name != "" {
			s.name = p.Name
		}
		return s, nil

	case strategy.KindRollingDrawdown:
		payout, err := p.payout()
		if err != nil {
			return nil, err
		}
		s, err := NewRollingDrawdown(p.Window, p.Threshold, payout)
		if err != nil {
			return nil, err
		}
		if p.Name != "" {
			s.name = p.Name
		}
		return s, nil

	case strategy.KindPeakDrawdown:
		payout, err := p.payout()
		if err != nil {
			return nil, err
		}
		s, err := NewPeakDrawdown(p.Threshold, payout)
		if err != nil {
			return nil, err
		}
		if p.Name != "" {
			s.name = p.Name
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: unknown strategy kind %q", strategy.ErrInvalidConfig, kind)
	}
}

// GridConfig lists the parameter values a sweep expands. Empty slices fall
// back to the matching Base field.
type GridConfig struct {
	Kinds      []strategy.Kind
	Base       Params
	Amounts    []float64
	Windows    []int
	Thresholds []float64
	Modes      []string
}

// Grid expands cfg into the cartesian product of its parameter lists, one
// strategy per combination, each with a distinct name. Parameters that do not
// apply to a kind are not expanded for it.
func Grid(cfg GridConfig) ([]strategy.Strategy, error) {
	amounts := cfg.Amounts
	if len(amounts) == 0 {
		amounts = []float64{cfg.Base.Amount}
	}
	windows := cfg.Windows
	if len(windows) == 0 {
		windows = []int{cfg.Base.Window}
	}
	thresholds := cfg.Thresholds
	if len(thresholds) == 0 {
		thresholds = []float64{cfg.Base.Threshold}
	}
	modes := cfg.Modes
	if len(modes) == 0 {
		modes = []string{cfg.Base.Mode}
	}

	var out []strategy.Strategy
	seen := make(map[string]bool)
	add := func(kind strategy.Kind, p Params) error {
		if seen[p.Name] {
			return nil
		}
		s, err := FromParams(kind, p)
		if err != nil {
			return fmt.Errorf("grid %s: %w", p.Name, err)
		}
		seen[p.Name] = true
		out = append(out, s)
		return nil
	}

	for _, kind := range cfg.Kinds {
		switch kind {
		case strategy.KindMonthly:
			for _, a := range amounts {
				p := cfg.Base
				p.Amount = a
				p.Name = "strat1_monthly_a" + fmtNum(a)
				if err := add(kind, p); err != nil {
					return nil, err
				}
			}
		case strategy.KindRollingDrawdown:
			for _, w := range windows {
				for _, th := range thresholds {
					for _, m := range modes {
						p := cfg.Base
						p.Window, p.Threshold, p.Mode = w, th, m
						p.Name = fmt.Sprintf("strat2_rolling_dd_w%d_t%s_%s", w, fmtNum(th), m)
						if err := add(kind, p); err != nil {
							return nil, err
						}
					}
				}
			}
		case strategy.KindPeakDrawdown:
			for _, th := range thresholds {
				for _, m := range modes {
					p := cfg.Base
					p.Threshold, p.Mode = th, m
					p.Name = fmt.Sprintf("strat3_peak_dd_t%s_%s", fmtNum(th), m)
					if err := add(kind, p); err != nil {
						return nil, err
					}
				}
			}
		default:
			return nil, fmt.Errorf("%w: unknown strategy kind %q", strategy.ErrInvalidConfig, kind)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: sweep grid is empty", strategy.ErrInvalidConfig)
	}
	return out, nil
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
