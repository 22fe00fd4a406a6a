package strategy

import (
	"fmt"
	"math"
	"strings"
)

// PayoutMode selects how much a drawdown strategy invests per trigger.
type PayoutMode string

const (
	// PayoutFixed invests the same amount on every trigger.
	PayoutFixed PayoutMode = "fixed"
	// PayoutProportional invests K times the drawdown magnitude.
	PayoutProportional PayoutMode = "proportional"
)

// ParsePayoutMode validates a payout mode string. Unknown modes are a
// configuration error, never silently defaulted.
func ParsePayoutMode(s string) (PayoutMode, error) {
	switch PayoutMode(strings.ToLower(strings.TrimSpace(s))) {
	case PayoutFixed:
		return PayoutFixed, nil
	case PayoutProportional:
		return PayoutProportional, nil
	default:
		return "", fmt.Errorf("%w: mode must be 'fixed' or 'proportional', got %q", ErrInvalidConfig, s)
	}
}

// Payout sizes the cash deployed on a trigger date.
type Payout struct {
	Mode  PayoutMode
	Fixed float64 // dollars per trigger in fixed mode
	K     float64 // dollars per 1.0 of drawdown in proportional mode
}

// Validate checks the mode and that the amounts are finite and non-negative.
func (p Payout) Validate() error {
	if _, err := ParsePayoutMode(string(p.Mode)); err != nil {
		return err
	}
	if err := RequireNonNegative("fixed amount", p.Fixed); err != nil {
		return err
	}
	return RequireNonNegative("proportional multiplier", p.K)
}

// Amount returns the dollars to invest for a drawdown of the given positive
// magnitude.
func (p Payout) Amount(magnitude float64) (float64, error) {
	switch p.Mode {
	case PayoutFixed:
		return p.Fixed, nil
	case PayoutProportional:
		return p.K * magnitude, nil
	default:
		return 0, fmt.Errorf("%w: mode must be 'fixed' or 'proportional', got %q", ErrInvalidConfig, p.Mode)
	}
}

// RequireNonNegative returns a configuration error naming the parameter
// unless v is a finite, non-negative number.
func RequireNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidConfig, name, v)
	}
	return nil
}
