package execution

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/internal/pricing"
	"github.com/tathienbao/backsim/internal/types"
)

// Handler tracks one order through its lifecycle. The set of handlers is
// closed: every Handler is either a ModifyHandler or a CreateHandler.
type Handler interface {
	State() order.State
	Status() types.OrderStatus
	Asset() types.Asset
	OrderID() string

	accept(t time.Time) bool
	reject(t time.Time) bool
}

// ModifyHandler changes another open order. It never needs a price and
// always runs before any CreateHandler of the same step.
type ModifyHandler interface {
	Handler
	Execute(handlers []CreateHandler, t time.Time)
}

// CreateHandler turns its order into executions when priced.
type CreateHandler interface {
	Handler
	// Execute fills what the pricing allows. It returns nothing once the
	// order is final.
	Execute(p pricing.Pricing, t time.Time) []Execution
	// Update replaces the order parameters. False leaves the state untouched.
	Update(o order.Create, t time.Time) bool
	// Cancel stops further fills. False when the order is already final.
	Cancel(t time.Time) bool
}

type stateHolder struct {
	state *order.State
}

func (h *stateHolder) State() order.State        { return h.state.Snapshot() }
func (h *stateHolder) Status() types.OrderStatus { return h.state.Status }
func (h *stateHolder) Asset() types.Asset        { return h.state.Order.Asset() }
func (h *stateHolder) OrderID() string           { return h.state.Order.ID() }

func (h *stateHolder) accept(t time.Time) bool { return h.state.Accept(t) }
func (h *stateHolder) reject(t time.Time) bool { return h.state.Reject(t) }

// NewHandler wraps an order in the handler for its kind.
func NewHandler(o order.Order) (Handler, error) {
	switch o := o.(type) {
	case *order.CancelOrder:
		return &CancelHandler{stateHolder: stateHolder{order.NewState(o)}, order: o}, nil
	case *order.UpdateOrder:
		return &UpdateHandler{stateHolder: stateHolder{order.NewState(o)}, order: o}, nil
	case *order.MarketOrder, *order.LimitOrder, *order.StopOrder, *order.StopLimitOrder:
		c := o.(order.Create)
		return &OrderHandler{stateHolder: stateHolder{order.NewState(c)}, order: c}, nil
	default:
		return nil, types.Errorf(types.KindUnsupported, "unsupported order type %T", o)
	}
}

// validate returns false for orders that can never fill.
func validate(o order.Create) bool {
	if o.Size().IsZero() {
		return false
	}
	switch o := o.(type) {
	case *order.LimitOrder:
		return o.Limit().IsPositive()
	case *order.StopOrder:
		return o.Stop().IsPositive()
	case *order.StopLimitOrder:
		return o.Stop().IsPositive() && o.Limit().IsPositive()
	default:
		return true
	}
}

// CancelHandler cancels its target. It completes when the target accepted
// the cancellation and is rejected otherwise.
type CancelHandler struct {
	stateHolder
	order *order.CancelOrder
}

// Execute implements ModifyHandler.
func (h *CancelHandler) Execute(handlers []CreateHandler, t time.Time) {
	if h.state.Status.IsFinal() {
		return
	}
	target := find(handlers, h.order.Target().ID())
	if target != nil && target.Cancel(t) {
		h.state.Complete(t)
		return
	}
	h.state.Reject(t)
}

// UpdateHandler replaces the parameters of its target.
type UpdateHandler struct {
	stateHolder
	order *order.UpdateOrder
}

// Execute implements ModifyHandler.
func (h *UpdateHandler) Execute(handlers []CreateHandler, t time.Time) {
	if h.state.Status.IsFinal() {
		return
	}
	target := find(handlers, h.order.Target().ID())
	if target != nil && target.Update(h.order.Replacement(), t) {
		h.state.Complete(t)
		return
	}
	h.state.Reject(t)
}

func find(handlers []CreateHandler, id string) CreateHandler {
	for _, h := range handlers {
		if h.OrderID() == id && !h.Status().IsFinal() {
			return h
		}
	}
	return nil
}

// OrderHandler fills market, limit, stop and stop-limit orders.
type OrderHandler struct {
	stateHolder
	order     order.Create
	triggered bool // stop price reached; persists across steps
}

// Execute implements CreateHandler.
func (h *OrderHandler) Execute(p pricing.Pricing, t time.Time) []Execution {
	if h.state.Status.IsFinal() {
		return nil
	}
	h.state.Accept(t)

	tif := h.order.TimeInForce()
	if tif.IsExpired(h.state.OpenedAt, t) {
		h.state.Expire(t)
		return nil
	}

	remaining := h.state.Remaining()
	var executions []Execution
	if price, ok := h.fillPrice(p, remaining); ok {
		fill := capSize(remaining, p.Liquidity())
		if tif.CanFill(fill, remaining) {
			h.state.Fill(fill, t)
			executions = append(executions, newExecution(h.order.ID(), h.order.Asset(), fill, price, t))
		}
	}

	if tif.IsImmediate() {
		h.state.Expire(t)
	}
	return executions
}

// Update implements CreateHandler.
func (h *OrderHandler) Update(o order.Create, t time.Time) bool {
	if h.state.Status.IsFinal() {
		return false
	}
	if !o.Asset().SameAs(h.order.Asset()) || order.Kind(o) != order.Kind(h.order) {
		return false
	}
	if o.Size().Sign() != h.order.Size().Sign() {
		return false
	}
	if o.Size().Abs().LessThan(h.state.Filled.Abs()) || !validate(o) {
		return false
	}

	h.order = o
	h.state.Order = o
	if h.state.Remaining().IsZero() {
		h.state.Complete(t)
	}
	return true
}

// Cancel implements CreateHandler.
func (h *OrderHandler) Cancel(t time.Time) bool {
	return h.state.Cancel(t)
}

// fillPrice returns the price at which size can fill now, if any.
func (h *OrderHandler) fillPrice(p pricing.Pricing, size decimal.Decimal) (decimal.Decimal, bool) {
	switch o := h.order.(type) {
	case *order.MarketOrder:
		return p.MarketPrice(size), true
	case *order.LimitOrder:
		return limitPrice(p, size, o.Limit())
	case *order.StopOrder:
		if !h.triggered {
			h.triggered = stopTriggered(p, size, o.Stop())
		}
		if !h.triggered {
			return decimal.Zero, false
		}
		return stopPrice(p, size, o.Stop()), true
	case *order.StopLimitOrder:
		if !h.triggered {
			h.triggered = stopTriggered(p, size, o.Stop())
		}
		if !h.triggered {
			return decimal.Zero, false
		}
		return limitPrice(p, size, o.Limit())
	default:
		return decimal.Zero, false
	}
}

// A buy limit fills once the low reaches the limit, a sell limit once the
// high does. The fill is never worse than the limit.
func limitPrice(p pricing.Pricing, size, limit decimal.Decimal) (decimal.Decimal, bool) {
	if size.IsPositive() {
		if p.LowPrice(size).GreaterThan(limit) {
			return decimal.Zero, false
		}
		return decimal.Min(p.MarketPrice(size), limit), true
	}
	if p.HighPrice(size).LessThan(limit) {
		return decimal.Zero, false
	}
	return decimal.Max(p.MarketPrice(size), limit), true
}

// A buy stop triggers when the high reaches the stop, a sell stop when the
// low does.
func stopTriggered(p pricing.Pricing, size, stop decimal.Decimal) bool {
	if size.IsPositive() {
		return p.HighPrice(size).GreaterThanOrEqual(stop)
	}
	return p.LowPrice(size).LessThanOrEqual(stop)
}

// A triggered stop fills at market, but not better than the stop itself.
func stopPrice(p pricing.Pricing, size, stop decimal.Decimal) decimal.Decimal {
	if size.IsPositive() {
		return decimal.Max(p.MarketPrice(size), stop)
	}
	return decimal.Min(p.MarketPrice(size), stop)
}

// capSize limits the absolute size to liquidity. Zero liquidity is unlimited.
func capSize(size, liquidity decimal.Decimal) decimal.Decimal {
	if liquidity.IsZero() || size.Abs().LessThanOrEqual(liquidity) {
		return size
	}
	if size.IsNegative() {
		return liquidity.Neg()
	}
	return liquidity
}
