// Package execution simulates how orders turn into fills.
package execution

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

// Execution is a single simulated fill. Size is signed: positive buys,
// negative sells.
type Execution struct {
	ID      string
	OrderID string
	Asset   types.Asset
	Size    decimal.Decimal
	Price   decimal.Decimal
	Time    time.Time
}

func newExecution(orderID string, asset types.Asset, size, price decimal.Decimal, t time.Time) Execution {
	return Execution{
		ID:      uuid.NewString(),
		OrderID: orderID,
		Asset:   asset,
		Size:    size,
		Price:   price,
		Time:    t,
	}
}

// Value returns size * price * multiplier in the asset currency.
func (e Execution) Value() types.Amount {
	return e.Asset.Value(e.Size, e.Price)
}

func (e Execution) String() string {
	return fmt.Sprintf("%s %s @ %s order=%s", e.Asset, e.Size, e.Price, e.OrderID)
}
