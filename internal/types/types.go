// Package types defines shared types used across the simulated broker.
package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a position or an order.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// SideOf returns the side implied by the sign of a signed size.
func SideOf(size decimal.Decimal) Side {
	switch size.Sign() {
	case 1:
		return SideLong
	case -1:
		return SideShort
	default:
		return SideFlat
	}
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus int

const (
	OrderStatusInitial OrderStatus = iota
	OrderStatusAccepted
	OrderStatusPartiallyFilled
	OrderStatusCompleted
	OrderStatusCancelled
	OrderStatusRejected
	OrderStatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusInitial:
		return "INITIAL"
	case OrderStatusAccepted:
		return "ACCEPTED"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusCompleted:
		return "COMPLETED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusRejected:
		return "REJECTED"
	case OrderStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the order is in a terminal state.
func (s OrderStatus) IsFinal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// IsOpen returns true while the order can still be filled or modified.
func (s OrderStatus) IsOpen() bool {
	return !s.IsFinal()
}

// AssetType classifies a tradeable instrument.
type AssetType int

const (
	AssetStock AssetType = iota
	AssetFuture
	AssetForex
	AssetCrypto
)

func (t AssetType) String() string {
	switch t {
	case AssetStock:
		return "STOCK"
	case AssetFuture:
		return "FUTURE"
	case AssetForex:
		return "FOREX"
	case AssetCrypto:
		return "CRYPTO"
	default:
		return "UNKNOWN"
	}
}

// Asset identifies an instrument and the currency it is priced in.
type Asset struct {
	Symbol     string
	Type       AssetType
	Currency   Currency
	Exchange   string
	Multiplier decimal.Decimal // Contract multiplier; zero means 1
}

// NewStock returns a stock asset priced in the given currency.
func NewStock(symbol string, currency Currency) Asset {
	return Asset{Symbol: symbol, Type: AssetStock, Currency: currency, Multiplier: decimal.NewFromInt(1)}
}

// NewFuture returns a futures contract with the given point value.
func NewFuture(symbol string, currency Currency, multiplier decimal.Decimal) Asset {
	return Asset{Symbol: symbol, Type: AssetFuture, Currency: currency, Multiplier: multiplier}
}

// Key returns the identifier used to index assets in maps.
func (a Asset) Key() string {
	if a.Exchange == "" {
		return strings.ToUpper(a.Symbol)
	}
	return strings.ToUpper(a.Symbol) + "@" + strings.ToUpper(a.Exchange)
}

// SameAs reports whether both values refer to the same instrument.
func (a Asset) SameAs(other Asset) bool {
	return a.Key() == other.Key()
}

// ContractMultiplier returns the multiplier, treating zero as 1.
func (a Asset) ContractMultiplier() decimal.Decimal {
	if a.Multiplier.IsZero() {
		return decimal.NewFromInt(1)
	}
	return a.Multiplier
}

// Value returns size * price * multiplier in the asset currency.
func (a Asset) Value(size, price decimal.Decimal) Amount {
	return Amount{
		Currency: a.Currency,
		Value:    size.Mul(price).Mul(a.ContractMultiplier()),
	}
}

func (a Asset) String() string {
	return a.Key()
}
