// Package market defines the price observations replayed by a feed.
package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

// PriceType selects which price of an action to use.
type PriceType int

const (
	PriceDefault PriceType = iota
	PriceOpen
	PriceHigh
	PriceLow
	PriceClose
)

func (p PriceType) String() string {
	switch p {
	case PriceOpen:
		return "OPEN"
	case PriceHigh:
		return "HIGH"
	case PriceLow:
		return "LOW"
	case PriceClose:
		return "CLOSE"
	default:
		return "DEFAULT"
	}
}

// PriceAction is a single price observation for one asset.
type PriceAction interface {
	Asset() types.Asset
	Price(t PriceType) decimal.Decimal
	// Volume returns the traded volume, zero when unknown.
	Volume() decimal.Decimal
}

// TradePrice is a last-trade observation.
type TradePrice struct {
	Instrument types.Asset
	Last       decimal.Decimal
	Size       decimal.Decimal
}

func (p TradePrice) Asset() types.Asset              { return p.Instrument }
func (p TradePrice) Price(PriceType) decimal.Decimal { return p.Last }
func (p TradePrice) Volume() decimal.Decimal         { return p.Size }

// PriceBar is an OHLCV bar.
type PriceBar struct {
	Instrument types.Asset
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Vol        decimal.Decimal
}

// NewPriceBar builds a bar from float values.
func NewPriceBar(asset types.Asset, open, high, low, close, volume float64) PriceBar {
	return PriceBar{
		Instrument: asset,
		Open:       decimal.NewFromFloat(open),
		High:       decimal.NewFromFloat(high),
		Low:        decimal.NewFromFloat(low),
		Close:      decimal.NewFromFloat(close),
		Vol:        decimal.NewFromFloat(volume),
	}
}

func (b PriceBar) Asset() types.Asset      { return b.Instrument }
func (b PriceBar) Volume() decimal.Decimal { return b.Vol }

// Price returns the requested price; the default is the close.
func (b PriceBar) Price(t PriceType) decimal.Decimal {
	switch t {
	case PriceOpen:
		return b.Open
	case PriceHigh:
		return b.High
	case PriceLow:
		return b.Low
	default:
		return b.Close
	}
}

// PriceQuote is a top-of-book quote.
type PriceQuote struct {
	Instrument types.Asset
	Ask        decimal.Decimal
	AskSize    decimal.Decimal
	Bid        decimal.Decimal
	BidSize    decimal.Decimal
}

func (q PriceQuote) Asset() types.Asset { return q.Instrument }

// Price returns the mid price for every price type except HIGH (ask) and LOW (bid).
func (q PriceQuote) Price(t PriceType) decimal.Decimal {
	switch t {
	case PriceHigh:
		return q.Ask
	case PriceLow:
		return q.Bid
	default:
		return q.Ask.Add(q.Bid).Div(decimal.NewFromInt(2))
	}
}

// Volume returns the smaller side of the book.
func (q PriceQuote) Volume() decimal.Decimal {
	return decimal.Min(q.AskSize, q.BidSize)
}

// Event is the set of price actions observed at one instant.
type Event struct {
	Time    time.Time
	Actions []PriceAction
}

// NewEvent creates an event.
func NewEvent(t time.Time, actions ...PriceAction) Event {
	return Event{Time: t, Actions: actions}
}

// Prices returns the last action per asset key.
func (e Event) Prices() map[string]PriceAction {
	out := make(map[string]PriceAction, len(e.Actions))
	for _, a := range e.Actions {
		out[a.Asset().Key()] = a
	}
	return out
}

// IsEmpty reports whether the event carries no actions.
func (e Event) IsEmpty() bool {
	return len(e.Actions) == 0
}
