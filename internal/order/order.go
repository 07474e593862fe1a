// Package order defines the immutable orders a strategy submits and the
// lifecycle state the broker tracks for each of them.
package order

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

// Order is any instruction sent to the broker.
type Order interface {
	ID() string
	Asset() types.Asset
	Tag() string
	String() string
}

// Create is an order that can produce executions. Size is signed:
// positive buys, negative sells.
type Create interface {
	Order
	Size() decimal.Decimal
	TimeInForce() TimeInForce
	isCreate()
}

// Modify is an order that changes another, still open, order.
type Modify interface {
	Order
	Target() Create
	isModify()
}

type options struct {
	id  string
	tag string
	tif TimeInForce
}

// Option customizes a new order.
type Option func(*options)

// WithID sets the order id instead of generating one.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithTag attaches a free-form label, e.g. the name of the signal.
func WithTag(tag string) Option {
	return func(o *options) { o.tag = tag }
}

// WithTimeInForce sets the time-in-force policy. Ignored by modify orders.
func WithTimeInForce(tif TimeInForce) Option {
	return func(o *options) { o.tif = tif }
}

func applyOptions(opts []Option) options {
	o := options{tif: GTC()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	return o
}

type base struct {
	id    string
	asset types.Asset
	tag   string
}

func (b base) ID() string         { return b.id }
func (b base) Asset() types.Asset { return b.asset }
func (b base) Tag() string        { return b.tag }

type createBase struct {
	base
	size decimal.Decimal
	tif  TimeInForce
}

func (c createBase) Size() decimal.Decimal    { return c.size }
func (c createBase) TimeInForce() TimeInForce { return c.tif }
func (createBase) isCreate()                  {}

// IsBuy reports whether the order increases the position.
func (c createBase) IsBuy() bool { return c.size.IsPositive() }

// IsSell reports whether the order decreases the position.
func (c createBase) IsSell() bool { return c.size.IsNegative() }

func newCreateBase(asset types.Asset, size decimal.Decimal, opts []Option) createBase {
	o := applyOptions(opts)
	return createBase{
		base: base{id: o.id, asset: asset, tag: o.tag},
		size: size,
		tif:  o.tif,
	}
}

// MarketOrder fills at the prevailing price.
type MarketOrder struct {
	createBase
}

// NewMarket creates a market order.
func NewMarket(asset types.Asset, size decimal.Decimal, opts ...Option) *MarketOrder {
	return &MarketOrder{createBase: newCreateBase(asset, size, opts)}
}

func (o *MarketOrder) String() string {
	return fmt.Sprintf("MARKET %s %s %s id=%s", o.asset, o.size, o.tif, o.id)
}

// LimitOrder fills at the limit price or better.
type LimitOrder struct {
	createBase
	limit decimal.Decimal
}

// NewLimit creates a limit order.
func NewLimit(asset types.Asset, size, limit decimal.Decimal, opts ...Option) *LimitOrder {
	return &LimitOrder{createBase: newCreateBase(asset, size, opts), limit: limit}
}

func (o *LimitOrder) Limit() decimal.Decimal { return o.limit }

func (o *LimitOrder) String() string {
	return fmt.Sprintf("LIMIT %s %s @%s %s id=%s", o.asset, o.size, o.limit, o.tif, o.id)
}

// StopOrder becomes a market order once the stop price is reached.
type StopOrder struct {
	createBase
	stop decimal.Decimal
}

// NewStop creates a stop order.
func NewStop(asset types.Asset, size, stop decimal.Decimal, opts ...Option) *StopOrder {
	return &StopOrder{createBase: newCreateBase(asset, size, opts), stop: stop}
}

func (o *StopOrder) Stop() decimal.Decimal { return o.stop }

func (o *StopOrder) String() string {
	return fmt.Sprintf("STOP %s %s stop=%s %s id=%s", o.asset, o.size, o.stop, o.tif, o.id)
}

// StopLimitOrder becomes a limit order once the stop price is reached.
type StopLimitOrder struct {
	createBase
	stop  decimal.Decimal
	limit decimal.Decimal
}

// NewStopLimit creates a stop-limit order.
func NewStopLimit(asset types.Asset, size, stop, limit decimal.Decimal, opts ...Option) *StopLimitOrder {
	return &StopLimitOrder{createBase: newCreateBase(asset, size, opts), stop: stop, limit: limit}
}

func (o *StopLimitOrder) Stop() decimal.Decimal  { return o.stop }
func (o *StopLimitOrder) Limit() decimal.Decimal { return o.limit }

func (o *StopLimitOrder) String() string {
	return fmt.Sprintf("STOP_LIMIT %s %s stop=%s limit=%s %s id=%s", o.asset, o.size, o.stop, o.limit, o.tif, o.id)
}

// CancelOrder cancels the remaining size of its target.
type CancelOrder struct {
	base
	target Create
}

// NewCancel creates a cancellation of target.
func NewCancel(target Create, opts ...Option) *CancelOrder {
	o := applyOptions(opts)
	return &CancelOrder{
		base:   base{id: o.id, asset: target.Asset(), tag: o.tag},
		target: target,
	}
}

func (o *CancelOrder) Target() Create { return o.target }
func (*CancelOrder) isModify()        {}

func (o *CancelOrder) String() string {
	return fmt.Sprintf("CANCEL %s target=%s id=%s", o.asset, o.target.ID(), o.id)
}

// UpdateOrder replaces the parameters of its target. The replacement must be
// the same kind of order for the same asset and direction. It is stored
// under the target's id so the order keeps its identity after the update.
type UpdateOrder struct {
	base
	target      Create
	replacement Create
}

// NewUpdate creates an update of target.
func NewUpdate(target, replacement Create, opts ...Option) *UpdateOrder {
	o := applyOptions(opts)
	return &UpdateOrder{
		base:        base{id: o.id, asset: target.Asset(), tag: o.tag},
		target:      target,
		replacement: withID(replacement, target.ID()),
	}
}

func withID(c Create, id string) Create {
	switch o := c.(type) {
	case *MarketOrder:
		cp := *o
		cp.id = id
		return &cp
	case *LimitOrder:
		cp := *o
		cp.id = id
		return &cp
	case *StopOrder:
		cp := *o
		cp.id = id
		return &cp
	case *StopLimitOrder:
		cp := *o
		cp.id = id
		return &cp
	default:
		return c
	}
}

func (o *UpdateOrder) Target() Create      { return o.target }
func (o *UpdateOrder) Replacement() Create { return o.replacement }
func (*UpdateOrder) isModify()             {}

func (o *UpdateOrder) String() string {
	return fmt.Sprintf("UPDATE %s target=%s -> %s id=%s", o.asset, o.target.ID(), o.replacement, o.id)
}

// Kind returns a short name for the order type.
func Kind(o Order) string {
	switch o.(type) {
	case *MarketOrder:
		return "market"
	case *LimitOrder:
		return "limit"
	case *StopOrder:
		return "stop"
	case *StopLimitOrder:
		return "stop_limit"
	case *CancelOrder:
		return "cancel"
	case *UpdateOrder:
		return "update"
	default:
		return "unknown"
	}
}
