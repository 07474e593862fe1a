package execution

import (
	"log/slog"
	"time"

	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/internal/pricing"
	"github.com/tathienbao/backsim/internal/types"
)

// Engine runs the handlers of all open orders, one step at a time.
// It is not safe for concurrent use; each run owns its own engine.
type Engine struct {
	pricing pricing.Engine
	logger  *slog.Logger

	modify []ModifyHandler
	create []CreateHandler // submission order
	closed []order.State
}

// NewEngine creates an engine. A nil pricing engine fills without costs.
func NewEngine(pe pricing.Engine, logger *slog.Logger) *Engine {
	if pe == nil {
		pe = pricing.NoCostEngine{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{pricing: pe, logger: logger}
}

// Add accepts new orders at time t. Orders that can never fill, or that are
// of an unknown type, are rejected immediately.
func (e *Engine) Add(t time.Time, orders ...order.Order) {
	for _, o := range orders {
		h, err := NewHandler(o)
		if err != nil {
			e.logger.Warn("order rejected", "order_id", o.ID(), "error", err)
			s := order.NewState(o)
			s.Reject(t)
			e.closed = append(e.closed, s.Snapshot())
			continue
		}

		switch h := h.(type) {
		case ModifyHandler:
			h.accept(t)
			e.modify = append(e.modify, h)
		case CreateHandler:
			if !validate(o.(order.Create)) {
				e.logger.Warn("order rejected", "order_id", o.ID(), "order", o.String())
				h.reject(t)
				e.closed = append(e.closed, h.State())
				continue
			}
			h.accept(t)
			e.create = append(e.create, h)
		}
	}
}

// Execute runs one step: all modify handlers first, then every create
// handler that has a price in the event, both in submission order.
// Handlers reaching a final status are moved to the closed list.
func (e *Engine) Execute(event market.Event) []Execution {
	t := event.Time

	for _, h := range e.modify {
		h.Execute(e.create, t)
		if h.Status() == types.OrderStatusRejected {
			e.logger.Debug("modify order rejected", "order_id", h.OrderID())
		}
	}

	prices := event.Prices()
	var executions []Execution
	for _, h := range e.create {
		if h.Status().IsFinal() {
			continue
		}
		action, ok := prices[h.Asset().Key()]
		if !ok {
			continue
		}
		executions = append(executions, h.Execute(e.pricing.Pricing(action, t), t)...)
	}

	e.sweep()
	return executions
}

func (e *Engine) sweep() {
	modify := e.modify[:0]
	for _, h := range e.modify {
		if h.Status().IsFinal() {
			e.closed = append(e.closed, h.State())
			continue
		}
		modify = append(modify, h)
	}
	e.modify = modify

	create := e.create[:0]
	for _, h := range e.create {
		if h.Status().IsFinal() {
			e.closed = append(e.closed, h.State())
			continue
		}
		create = append(create, h)
	}
	e.create = create
}

// Open returns the state of every order that can still fill.
func (e *Engine) Open() []order.State {
	out := make([]order.State, 0, len(e.create))
	for _, h := range e.create {
		out = append(out, h.State())
	}
	return out
}

// DrainClosed returns the orders closed since the previous call.
func (e *Engine) DrainClosed() []order.State {
	out := e.closed
	e.closed = nil
	return out
}

// Clear drops all handlers without closing them.
func (e *Engine) Clear() {
	e.modify = nil
	e.create = nil
	e.closed = nil
}
