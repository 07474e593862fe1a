package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

// State is the lifecycle state of one order. Transitions are monotonic:
// once a final status is reached every transition method returns false.
type State struct {
	Order    Order
	Status   types.OrderStatus
	Filled   decimal.Decimal // Signed cumulative fill, same sign as the order size
	OpenedAt time.Time
	ClosedAt time.Time
}

// NewState returns the initial state for an order.
func NewState(o Order) *State {
	return &State{Order: o, Status: types.OrderStatusInitial}
}

// Size returns the order size, zero for modify orders.
func (s *State) Size() decimal.Decimal {
	if c, ok := s.Order.(Create); ok {
		return c.Size()
	}
	return decimal.Zero
}

// Remaining returns the size still to be filled.
func (s *State) Remaining() decimal.Decimal {
	return s.Size().Sub(s.Filled)
}

// Accept moves an initial order to ACCEPTED.
func (s *State) Accept(t time.Time) bool {
	if s.Status != types.OrderStatusInitial {
		return false
	}
	s.Status = types.OrderStatusAccepted
	s.OpenedAt = t
	return true
}

// Fill records an execution of qty. The order completes when nothing remains.
func (s *State) Fill(qty decimal.Decimal, t time.Time) bool {
	if s.Status.IsFinal() || qty.IsZero() {
		return false
	}
	if s.Status == types.OrderStatusInitial {
		s.Accept(t)
	}
	s.Filled = s.Filled.Add(qty)
	if s.Remaining().IsZero() {
		return s.close(types.OrderStatusCompleted, t)
	}
	s.Status = types.OrderStatusPartiallyFilled
	return true
}

// Complete closes the order successfully.
func (s *State) Complete(t time.Time) bool { return s.close(types.OrderStatusCompleted, t) }

// Cancel closes the order on request. Earlier fills stay.
func (s *State) Cancel(t time.Time) bool { return s.close(types.OrderStatusCancelled, t) }

// Reject closes the order because it could not be processed.
func (s *State) Reject(t time.Time) bool { return s.close(types.OrderStatusRejected, t) }

// Expire closes the order because its time in force ran out.
func (s *State) Expire(t time.Time) bool { return s.close(types.OrderStatusExpired, t) }

func (s *State) close(status types.OrderStatus, t time.Time) bool {
	if s.Status.IsFinal() {
		return false
	}
	if s.OpenedAt.IsZero() {
		s.OpenedAt = t
	}
	s.Status = status
	s.ClosedAt = t
	return true
}

// Snapshot returns a copy safe to hand to observers.
func (s *State) Snapshot() State {
	return *s
}
