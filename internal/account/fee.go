package account

import (
	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/execution"
	"github.com/tathienbao/backsim/internal/types"
)

// FeeModel computes the fee charged for an execution, in the asset currency.
type FeeModel interface {
	Fee(exec execution.Execution) types.Amount
}

// NoFee charges nothing.
type NoFee struct{}

// Fee implements FeeModel.
func (NoFee) Fee(exec execution.Execution) types.Amount {
	return types.Amount{Currency: exec.Asset.Currency, Value: decimal.Zero}
}

var bipsDivisor = decimal.NewFromInt(10_000)

// PercentageFee charges a number of basis points of the traded value.
type PercentageFee struct {
	Bips decimal.Decimal
}

// Fee implements FeeModel.
func (f PercentageFee) Fee(exec execution.Execution) types.Amount {
	value := exec.Value().Abs()
	return value.Mul(f.Bips.Div(bipsDivisor))
}

// PerUnitFee charges a fixed amount per unit or contract, with an optional
// minimum per execution.
type PerUnitFee struct {
	PerUnit decimal.Decimal
	Minimum decimal.Decimal
}

// Fee implements FeeModel.
func (f PerUnitFee) Fee(exec execution.Execution) types.Amount {
	fee := exec.Size.Abs().Mul(f.PerUnit)
	if fee.LessThan(f.Minimum) {
		fee = f.Minimum
	}
	return types.Amount{Currency: exec.Asset.Currency, Value: fee}
}
