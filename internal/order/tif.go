package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type tifKind int

const (
	tifGTC tifKind = iota
	tifGTD
	tifIOC
	tifFOK
	tifDAY
)

// TimeInForce controls how long an order stays active.
type TimeInForce struct {
	kind     tifKind
	deadline time.Time
}

// GTC keeps the order open until filled or cancelled.
func GTC() TimeInForce { return TimeInForce{kind: tifGTC} }

// GTD keeps the order open until the deadline has passed.
func GTD(deadline time.Time) TimeInForce { return TimeInForce{kind: tifGTD, deadline: deadline} }

// IOC fills what it can on the first priced step and expires the rest.
func IOC() TimeInForce { return TimeInForce{kind: tifIOC} }

// FOK fills completely on the first priced step or not at all.
func FOK() TimeInForce { return TimeInForce{kind: tifFOK} }

// DAY expires once the UTC date moves past the date the order was opened.
func DAY() TimeInForce { return TimeInForce{kind: tifDAY} }

// Deadline returns the GTD deadline, zero for other policies.
func (t TimeInForce) Deadline() time.Time { return t.deadline }

// IsImmediate reports whether the order only gets a single priced step.
func (t TimeInForce) IsImmediate() bool {
	return t.kind == tifIOC || t.kind == tifFOK
}

// RequiresFullFill reports whether a partial fill is not acceptable.
func (t TimeInForce) RequiresFullFill() bool {
	return t.kind == tifFOK
}

// IsExpired reports whether an order opened at openedAt is no longer
// active at now. Immediate policies are handled by the execution step.
func (t TimeInForce) IsExpired(openedAt, now time.Time) bool {
	switch t.kind {
	case tifGTD:
		return now.After(t.deadline)
	case tifDAY:
		if openedAt.IsZero() {
			return false
		}
		y1, m1, d1 := openedAt.UTC().Date()
		y2, m2, d2 := now.UTC().Date()
		return y1 != y2 || m1 != m2 || d1 != d2
	default:
		return false
	}
}

// CanFill reports whether a fill of fill out of remaining is allowed.
func (t TimeInForce) CanFill(fill, remaining decimal.Decimal) bool {
	if t.RequiresFullFill() {
		return fill.Abs().GreaterThanOrEqual(remaining.Abs())
	}
	return !fill.IsZero()
}

func (t TimeInForce) String() string {
	switch t.kind {
	case tifGTD:
		return "GTD(" + t.deadline.UTC().Format(time.RFC3339) + ")"
	case tifIOC:
		return "IOC"
	case tifFOK:
		return "FOK"
	case tifDAY:
		return "DAY"
	default:
		return "GTC"
	}
}
