package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var _ Journal = (*SQLiteJournal)(nil)

// SQLiteJournal implements Journal on a SQLite file.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Parallel runs share one writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

// Migrate implements Journal.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			error TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS trades (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			execution_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			time TEXT NOT NULL,
			symbol TEXT NOT NULL,
			asset_type INTEGER NOT NULL,
			currency TEXT NOT NULL,
			exchange TEXT NOT NULL DEFAULT '',
			multiplier TEXT NOT NULL,
			size TEXT NOT NULL,
			price TEXT NOT NULL,
			fee TEXT NOT NULL,
			fee_currency TEXT NOT NULL,
			pnl TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			time TEXT NOT NULL,
			currency TEXT NOT NULL,
			equity TEXT NOT NULL,
			buying_power TEXT NOT NULL,
			positions INTEGER NOT NULL,
			open_orders INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id)`,
	}

	for _, m := range migrations {
		if _, err := j.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// StartRun implements Journal.
func (j *SQLiteJournal) StartRun(ctx context.Context, run Run) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, timeframe, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Name, run.Timeframe, formatTime(run.Started),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun implements Journal.
func (j *SQLiteJournal) FinishRun(ctx context.Context, runID string, finished time.Time, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, error = ? WHERE id = ?`,
		formatTime(finished), msg, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// Runs implements Journal.
func (j *SQLiteJournal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, name, timeframe, started_at, finished_at, error FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Timeframe, &started, &finished, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.Started, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			r.Finished = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveTrade implements Journal.
func (j *SQLiteJournal) SaveTrade(ctx context.Context, runID string, t account.Trade) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (run_id, execution_id, order_id, time, symbol, asset_type, currency,
			exchange, multiplier, size, price, fee, fee_currency, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		t.ExecutionID,
		t.OrderID,
		formatTime(t.Time),
		t.Asset.Symbol,
		int(t.Asset.Type),
		string(t.Asset.Currency),
		t.Asset.Exchange,
		t.Asset.ContractMultiplier().String(),
		t.Size.String(),
		t.Price.String(),
		t.Fee.Value.String(),
		string(t.Fee.Currency),
		t.PNL.Value.String(),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Trades implements Journal. Trades come back in the order they were saved.
func (j *SQLiteJournal) Trades(ctx context.Context, runID string) ([]account.Trade, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT execution_id, order_id, time, symbol, asset_type, currency, exchange, multiplier,
			size, price, fee, fee_currency, pnl
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []account.Trade
	for rows.Next() {
		var t account.Trade
		var assetType int
		var ts, currency, feeCurrency string
		var multiplier, size, price, fee, pnl string
		if err := rows.Scan(&t.ExecutionID, &t.OrderID, &ts, &t.Asset.Symbol, &assetType, &currency,
			&t.Asset.Exchange, &multiplier, &size, &price, &fee, &feeCurrency, &pnl); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		if t.Time, err = parseTime(ts); err != nil {
			return nil, err
		}
		t.Asset.Type = types.AssetType(assetType)
		t.Asset.Currency = types.Currency(currency)

		values, err := parseDecimals(multiplier, size, price, fee, pnl)
		if err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.ExecutionID, err)
		}
		t.Asset.Multiplier, t.Size, t.Price = values[0], values[1], values[2]
		t.Fee = types.Amount{Currency: types.Currency(feeCurrency), Value: values[3]}
		t.PNL = types.Amount{Currency: t.Asset.Currency, Value: values[4]}

		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveSnapshot implements Journal.
func (j *SQLiteJournal) SaveSnapshot(ctx context.Context, runID string, s Snapshot) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, time, currency, equity, buying_power, positions, open_orders)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		formatTime(s.Time),
		string(s.Currency),
		s.Equity.String(),
		s.BuyingPower.String(),
		s.Positions,
		s.OpenOrders,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Snapshots implements Journal.
func (j *SQLiteJournal) Snapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT time, currency, equity, buying_power, positions, open_orders
		FROM snapshots WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var s Snapshot
		var ts, currency, equity, buyingPower string
		if err := rows.Scan(&ts, &currency, &equity, &buyingPower, &s.Positions, &s.OpenOrders); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if s.Time, err = parseTime(ts); err != nil {
			return nil, err
		}
		s.Currency = types.Currency(currency)

		values, err := parseDecimals(equity, buyingPower)
		if err != nil {
			return nil, fmt.Errorf("snapshot at %s: %w", ts, err)
		}
		s.Equity, s.BuyingPower = values[0], values[1]

		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// Close implements Journal.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	var errs []error
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse decimal %q: %w", v, err))
			continue
		}
		out[i] = d
	}
	return out, errors.Join(errs...)
}
