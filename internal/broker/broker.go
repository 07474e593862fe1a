// Package broker defines the contract between a strategy driver and the
// broker that executes its orders.
package broker

import (
	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
)

// Broker processes orders against market events and owns the account they
// trade on.
type Broker interface {
	// Place submits orders at the time of event, processes the event and
	// returns the account as it stands after the step. Events must arrive
	// in time order.
	Place(orders []order.Order, event market.Event) (account.Account, error)

	// Account returns the account as of the last step.
	Account() (account.Account, error)

	// Reset discards all state and restores the initial deposit.
	Reset() error
}
