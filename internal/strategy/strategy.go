// Package strategy defines the Strategy interface for DCA policies, the
// shared pure helpers they are built from, a Registry for looking them up by
// name, and the backtest orchestrator that turns a strategy pass into report
// series and metrics.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"dcalab/internal/domain"
	"dcalab/internal/portfolio"
)

// ErrInvalidConfig marks configuration errors: bad parameters, unknown
// selectors or payout modes, and weights that do not fit the price table.
var ErrInvalidConfig = errors.New("invalid configuration")

// Kind tags the strategy variant.
type Kind string

const (
	KindMonthly         Kind = "monthly"
	KindRollingDrawdown Kind = "rolling_drawdown"
	KindPeakDrawdown    Kind = "peak_drawdown"
)

// ParseKind accepts a kind name or one of the short selectors strat1, strat2
// and strat3.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strat1", string(KindMonthly):
		return KindMonthly, nil
	case "strat2", string(KindRollingDrawdown):
		return KindRollingDrawdown, nil
	case "strat3", string(KindPeakDrawdown):
		return KindPeakDrawdown, nil
	case "":
		return "", fmt.Errorf("%w: missing strategy selector", ErrInvalidConfig)
	default:
		return "", fmt.Errorf("%w: unknown strategy %q (want strat1, strat2 or strat3)", ErrInvalidConfig, s)
	}
}

// Result is the outcome of one strategy pass: the populated ledger plus
// informational series aligned with the price table's index.
type Result struct {
	Ledger      *portfolio.Ledger
	Diagnostics []domain.Series
}

// Strategy is the interface all DCA policies implement. Run must be a pure
// function of its inputs.
type Strategy interface {
	// Name returns the unique identifier for this strategy instance.
	Name() string

	// Kind returns the variant tag.
	Kind() Kind

	// Run makes a single pass over the price table and returns the ledger of
	// buys it decided on.
	Run(table *domain.PriceTable, weights domain.Weights) (*Result, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
