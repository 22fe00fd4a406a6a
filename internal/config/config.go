// Package config loads dcalab's YAML configuration, fills in defaults and
// applies environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dcalab/internal/domain"
	"dcalab/internal/strategy"
	"dcalab/internal/strategy/builtins"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for dcalab.
type Config struct {
	Storage Storage `yaml:"storage"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Logging Logging `yaml:"logging"`
	Data    Data    `yaml:"data"`
	Run     Run     `yaml:"run"`
	Sweep   Sweep   `yaml:"sweep"`
	Output  Output  `yaml:"output"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`    // Parquet price cache root
	SQLitePath string `yaml:"sqlite_path"` // run catalog; empty disables it
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Configured reports whether credentials are present.
func (a Alpaca) Configured() bool {
	return a.APIKey != "" && a.APISecret != ""
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Data controls where prices come from.
type Data struct {
	Source          string        `yaml:"source"` // auto, alpaca or stooq
	Retries         int           `yaml:"retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	StooqURL        string        `yaml:"stooq_url"`
	Refresh         bool          `yaml:"refresh"`
}

// Run holds the parameters of a single backtest.
type Run struct {
	Strategy  string    `yaml:"strategy"`
	Start     string    `yaml:"start"`
	End       string    `yaml:"end"`
	Tickers   []string  `yaml:"tickers"`
	Weights   []float64 `yaml:"weights"`
	Amount    float64   `yaml:"amount"`
	Window    int       `yaml:"window"`
	Threshold float64   `yaml:"threshold"`
	Mode      string    `yaml:"mode"`
	Fixed     float64   `yaml:"fixed"`
	K         float64   `yaml:"k"`
	RunName   string    `yaml:"run_name"`
}

// Sweep lists the parameter grid of a sweep. Empty lists fall back to the
// matching Run value.
type Sweep struct {
	Strategies []string  `yaml:"strategies"`
	Amounts    []float64 `yaml:"amounts"`
	Windows    []int     `yaml:"windows"`
	Thresholds []float64 `yaml:"thresholds"`
	Modes      []string  `yaml:"modes"`
	Workers    int       `yaml:"workers"`
}

// Output controls where and what artifacts are written.
type Output struct {
	Dir           string `yaml:"dir"`
	TradesParquet bool   `yaml:"trades_parquet"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := builtins.DefaultParams()
	return &Config{
		Storage: Storage{DataDir: "data", SQLitePath: "dcalab.db"},
		Logging: Logging{Level: "info", Format: "text"},
		Data: Data{
			Source:          "auto",
			Retries:         4,
			RetryDelay:      3 * time.Second,
			RateLimitPerMin: 30,
		},
		Run: Run{
			Start:     "2005-01-01",
			Tickers:   []string{"SPY", "ACWI"},
			Weights:   []float64{0.7, 0.3},
			Amount:    p.Amount,
			Window:    p.Window,
			Threshold: p.Threshold,
			Mode:      p.Mode,
			Fixed:     p.Fixed,
			K:         p.K,
		},
		Sweep:  Sweep{Workers: 4},
		Output: Output{Dir: "outputs"},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, and then applies environment variable overrides. An empty path
// yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DCALAB_SOURCE"); v != "" {
		cfg.Data.Source = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks everything a single backtest needs. Errors wrap
// strategy.ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, err := strategy.ParseKind(c.Run.Strategy); err != nil {
		return fmt.Errorf("%w (provide a positional strategy or set run.strategy)", err)
	}
	return c.validateCommon()
}

// ValidateSweep checks everything a sweep needs.
func (c *Config) ValidateSweep() error {
	if _, err := c.SweepKinds(); err != nil {
		return err
	}
	for _, m := range c.Sweep.Modes {
		if _, err := strategy.ParsePayoutMode(m); err != nil {
			return err
		}
	}
	return c.validateCommon()
}

func (c *Config) validateCommon() error {
	switch strings.ToLower(c.Data.Source) {
	case "auto", "alpaca", "stooq":
	default:
		return invalid("data.source must be auto, alpaca or stooq, got %q", c.Data.Source)
	}
	if _, err := c.Run.Allocation(); err != nil {
		return err
	}
	start, end, err := c.Run.Dates()
	if err != nil {
		return err
	}
	if !end.IsZero() && end.Before(start) {
		return invalid("run.end %s is before run.start %s", c.Run.End, c.Run.Start)
	}
	if _, err := strategy.ParsePayoutMode(c.Run.Mode); err != nil {
		return err
	}
	return nil
}

// Dates parses Start and End. A blank End is returned as the zero time.
func (r Run) Dates() (start, end time.Time, err error) {
	start, err = time.Parse(domain.DateLayout, r.Start)
	if err != nil {
		return start, end, invalid("run.start %q: want YYYY-MM-DD", r.Start)
	}
	if r.End != "" {
		end, err = time.Parse(domain.DateLayout, r.End)
		if err != nil {
			return start, end, invalid("run.end %q: want YYYY-MM-DD", r.End)
		}
	}
	return start, end, nil
}

// Allocation pairs Tickers with Weights. The lists must have equal length.
func (r Run) Allocation() (domain.Weights, error) {
	w, err := domain.WeightsFromLists(r.Tickers, r.Weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", strategy.ErrInvalidConfig, err)
	}
	if err := w.Validate(nil); err != nil {
		return nil, fmt.Errorf("%w: %v", strategy.ErrInvalidConfig, err)
	}
	return w, nil
}

// Params returns the strategy parameters of the run.
func (r Run) Params() builtins.Params {
	return builtins.Params{
		Amount:    r.Amount,
		Window:    r.Window,
		Threshold: r.Threshold,
		Mode:      r.Mode,
		Fixed:     r.Fixed,
		K:         r.K,
	}
}

// SweepKinds parses the sweep strategy selectors. An empty list sweeps all
// three kinds.
func (c *Config) SweepKinds() ([]strategy.Kind, error) {
	if len(c.Sweep.Strategies) == 0 {
		return []strategy.Kind{strategy.KindMonthly, strategy.KindRollingDrawdown, strategy.KindPeakDrawdown}, nil
	}
	kinds := make([]strategy.Kind, 0, len(c.Sweep.Strategies))
	for _, s := range c.Sweep.Strategies {
		k, err := strategy.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Grid returns the sweep grid built from the Sweep section over the Run
// parameters.
func (c *Config) Grid() (builtins.GridConfig, error) {
	kinds, err := c.SweepKinds()
	if err != nil {
		return builtins.GridConfig{}, err
	}
	return builtins.GridConfig{
		Kinds:      kinds,
		Base:       c.Run.Params(),
		Amounts:    c.Sweep.Amounts,
		Windows:    c.Sweep.Windows,
		Thresholds: c.Sweep.Thresholds,
		Modes:      c.Sweep.Modes,
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", strategy.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
