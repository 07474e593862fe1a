// Package sim implements broker.Broker as a simulation: orders fill
// against the prices of each replayed market event.
package sim

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/broker"
	"github.com/tathienbao/backsim/internal/execution"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/metrics"
	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/internal/pricing"
	"github.com/tathienbao/backsim/internal/types"
)

var _ broker.Broker = (*Broker)(nil)

// Broker is a simulated broker for a single run. Place must be called from
// one goroutine; Account may be read concurrently.
type Broker struct {
	base      types.Currency
	deposit   types.Wallet
	model     account.Model
	pricing   pricing.Engine
	fees      account.FeeModel
	converter types.Converter
	logger    *slog.Logger
	recorder  *metrics.Recorder

	mu      sync.RWMutex
	account *account.InternalAccount
	engine  *execution.Engine
	last    []execution.Execution
}

// New creates a broker holding deposit. Without options it is a USD cash
// account with no fees and no price impact.
func New(deposit types.Wallet, opts ...Option) (*Broker, error) {
	b := &Broker{
		base:    types.USD,
		deposit: deposit.Clone(),
		model:   account.CashAccount{},
		pricing: pricing.NoCostEngine{},
		fees:    account.NoFee{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	if err := b.Reset(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reset implements broker.Broker.
func (b *Broker) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.account = account.NewInternalAccount(b.base, b.converter)
	for _, amount := range b.deposit.Amounts() {
		b.account.Deposit(amount)
	}
	b.engine = execution.NewEngine(b.pricing, b.logger)
	b.last = nil

	if err := b.model.UpdateAccount(b.account); err != nil {
		return fmt.Errorf("initial buying power: %w", err)
	}
	return nil
}

// Place implements broker.Broker. A step runs in a fixed order: the clock
// advances, new orders are accepted, modify orders run before create
// orders, fills are booked with their fees, positions are marked to the
// event prices, order states are synced and buying power is recomputed.
func (b *Broker) Place(orders []order.Order, event market.Event) (account.Account, error) {
	timer := metrics.NewTimer()
	defer func() { b.recorder.RecordStep(timer.Elapsed()) }()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.account.AdvanceTo(event.Time); err != nil {
		return account.Account{}, err
	}

	b.engine.Add(event.Time, orders...)
	b.last = b.engine.Execute(event)

	for _, exec := range b.last {
		trade := b.account.ApplyExecution(exec, b.fees.Fee(exec))
		b.recorder.RecordExecution(exec.Asset.Key(), exec.Size)
		b.logger.Debug("order filled",
			"order_id", exec.OrderID,
			"asset", exec.Asset.Key(),
			"size", exec.Size.String(),
			"price", exec.Price.String(),
			"fee", trade.Fee.String(),
			"pnl", trade.PNL.String(),
		)
	}

	b.account.UpdateMarketPrices(event)

	open, closed := b.engine.Open(), b.engine.DrainClosed()
	b.account.SyncOrders(open, closed)
	for _, s := range closed {
		b.recorder.RecordOrderStatus(s.Status)
	}

	if err := b.model.UpdateAccount(b.account); err != nil {
		b.recorder.RecordError(err)
		return account.Account{}, fmt.Errorf("updating account at %s: %w", event.Time, err)
	}

	snap, err := b.account.Snapshot()
	if err != nil {
		b.recorder.RecordError(err)
		return account.Account{}, err
	}
	b.recorder.RecordAccount(snap.Equity.Value, snap.BuyingPower.Value, len(open))
	return snap, nil
}

// Account implements broker.Broker.
func (b *Broker) Account() (account.Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.account.Snapshot()
}

// Executions returns the fills of the most recent step.
func (b *Broker) Executions() []execution.Execution {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]execution.Execution, len(b.last))
	copy(out, b.last)
	return out
}
