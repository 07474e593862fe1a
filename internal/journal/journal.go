// Package journal records the trades and account snapshots of simulation
// runs so they can be inspected after the fact.
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/types"
)

// Journal stores run results. Implementations must be safe for concurrent
// use by parallel runs.
type Journal interface {
	Migrate(ctx context.Context) error

	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID string, finished time.Time, runErr error) error
	Runs(ctx context.Context) ([]Run, error)

	SaveTrade(ctx context.Context, runID string, trade account.Trade) error
	Trades(ctx context.Context, runID string) ([]account.Trade, error)

	SaveSnapshot(ctx context.Context, runID string, snap Snapshot) error
	Snapshots(ctx context.Context, runID string) ([]Snapshot, error)

	Close() error
}

// Run describes one simulation run.
type Run struct {
	ID        string
	Name      string
	Timeframe string
	Started   time.Time
	Finished  *time.Time
	Error     string
}

// Snapshot is the account state after one step.
type Snapshot struct {
	Time        time.Time
	Currency    types.Currency
	Equity      decimal.Decimal
	BuyingPower decimal.Decimal
	Positions   int
	OpenOrders  int
}

// SnapshotOf extracts the journalled fields from an account.
func SnapshotOf(acc account.Account) Snapshot {
	return Snapshot{
		Time:        acc.LastUpdate,
		Currency:    acc.BaseCurrency,
		Equity:      acc.Equity.Value,
		BuyingPower: acc.BuyingPower.Value,
		Positions:   len(acc.Positions),
		OpenOrders:  len(acc.OpenOrders),
	}
}
