package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"dcalab/internal/strategy"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	created_at          INTEGER NOT NULL,
	tickers             TEXT NOT NULL,
	weights             TEXT NOT NULL,
	config_sha256       TEXT NOT NULL DEFAULT '',
	strategy            TEXT NOT NULL,
	start_date          TEXT NOT NULL,
	end_date            TEXT NOT NULL,
	total_contributions REAL,
	terminal_value      REAL,
	simple_return_pct   REAL,
	twr_annualized      REAL,
	irr_annualized      REAL,
	cagr                REAL,
	max_drawdown_pct    REAL,
	max_dd_peak         TEXT NOT NULL DEFAULT '',
	max_dd_trough       TEXT NOT NULL DEFAULT '',
	num_trades          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

const runColumns = `id, name, created_at, tickers, weights, config_sha256,
	strategy, start_date, end_date, total_contributions, terminal_value,
	simple_return_pct, twr_annualized, irr_annualized, cagr, max_drawdown_pct,
	max_dd_peak, max_dd_trough, num_trades`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// runs table if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts a run into the database. NaN metrics are stored as NULL.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return "", fmt.Errorf("encoding weights: %w", err)
	}

	m := run.Metrics
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.CreatedAt.UnixMilli(), strings.Join(run.Tickers, ","), string(weights), run.ConfigSHA256,
		m.Strategy, m.Start, m.End,
		nullable(m.TotalContributions), nullable(m.TerminalValue), nullable(m.SimpleReturnPct),
		nullable(m.TWRAnnualized), nullable(m.IRRAnnualized), nullable(m.CAGR), nullable(m.MaxDrawdownPct),
		m.MaxDDPeak, m.MaxDDTrough, m.NumTrades,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run %s: %w", run.Name, err)
	}
	return run.ID, nil
}

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		createdAt int64
		tickers   string
		weights   string
		m         strategy.MetricsRecord
		floats    [7]sql.NullFloat64
	)
	err := sc.Scan(
		&run.ID, &run.Name, &createdAt, &tickers, &weights, &run.ConfigSHA256,
		&m.Strategy, &m.Start, &m.End,
		&floats[0], &floats[1], &floats[2], &floats[3], &floats[4], &floats[5], &floats[6],
		&m.MaxDDPeak, &m.MaxDDTrough, &m.NumTrades,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	if tickers != "" {
		run.Tickers = strings.Split(tickers, ",")
	}
	if err := json.Unmarshal([]byte(weights), &run.Weights); err != nil {
		return nil, fmt.Errorf("decoding weights: %w", err)
	}
	m.TotalContributions = fromNullable(floats[0])
	m.TerminalValue = fromNullable(floats[1])
	m.SimpleReturnPct = fromNullable(floats[2])
	m.TWRAnnualized = fromNullable(floats[3])
	m.IRRAnnualized = fromNullable(floats[4])
	m.CAGR = fromNullable(floats[5])
	m.MaxDrawdownPct = fromNullable(floats[6])
	run.Metrics = m
	return &run, nil
}

// nullable maps non-finite values to SQL NULL.
func nullable(f strategy.Float) sql.NullFloat64 {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(n sql.NullFloat64) strategy.Float {
	if !n.Valid {
		return strategy.Float(math.NaN())
	}
	return strategy.Float(n.Float64)
}
