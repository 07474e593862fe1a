package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSide_String(t *testing.T) {
	tests := []struct {
		side Side
		want string
	}{
		{SideLong, "LONG"},
		{SideShort, "SHORT"},
		{SideFlat, "FLAT"},
		{Side(99), "FLAT"},
	}

	for _, tt := range tests {
		got := tt.side.String()
		if got != tt.want {
			t.Errorf("Side(%d).String() = %s, want %s", tt.side, got, tt.want)
		}
	}
}

func TestSideOf(t *testing.T) {
	tests := []struct {
		size string
		want Side
	}{
		{"10", SideLong},
		{"-0.5", SideShort},
		{"0", SideFlat},
	}

	for _, tt := range tests {
		got := SideOf(decimal.RequireFromString(tt.size))
		if got != tt.want {
			t.Errorf("SideOf(%s) = %s, want %s", tt.size, got, tt.want)
		}
		if got.Opposite().Opposite() != got {
			t.Errorf("%s.Opposite().Opposite() = %s", got, got.Opposite().Opposite())
		}
	}
}

func TestOrderStatus_IsFinal(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusInitial, false},
		{OrderStatusAccepted, false},
		{OrderStatusPartiallyFilled, false},
		{OrderStatusCompleted, true},
		{OrderStatusCancelled, true},
		{OrderStatusRejected, true},
		{OrderStatusExpired, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsFinal(); got != tt.want {
			t.Errorf("%s.IsFinal() = %v, want %v", tt.status, got, tt.want)
		}
		if got := tt.status.IsOpen(); got == tt.want {
			t.Errorf("%s.IsOpen() = %v, want %v", tt.status, got, !tt.want)
		}
	}

	if got := OrderStatus(99).String(); got != "UNKNOWN" {
		t.Errorf("OrderStatus(99).String() = %s, want UNKNOWN", got)
	}
}

func TestAsset_KeyAndValue(t *testing.T) {
	aapl := NewStock("aapl", USD)
	if aapl.Key() != "AAPL" {
		t.Errorf("Key() = %s, want AAPL", aapl.Key())
	}

	listed := Asset{Symbol: "SAP", Exchange: "xetra", Currency: EUR}
	if listed.Key() != "SAP@XETRA" {
		t.Errorf("Key() = %s, want SAP@XETRA", listed.Key())
	}
	if !listed.ContractMultiplier().Equal(decimal.NewFromInt(1)) {
		t.Errorf("zero multiplier = %s, want 1", listed.ContractMultiplier())
	}

	es := NewFuture("ES", USD, decimal.NewFromInt(50))
	v := es.Value(decimal.NewFromInt(-2), decimal.NewFromInt(4000))
	if v.Currency != USD || !v.Value.Equal(decimal.NewFromInt(-400000)) {
		t.Errorf("Value() = %s, want USD -400000", v)
	}
}

func TestWallet_DepositWithdraw(t *testing.T) {
	var w Wallet
	if !w.IsEmpty() {
		t.Fatal("zero wallet should be empty")
	}

	w.Deposit(NewAmount(USD, 100))
	w.Deposit(NewAmount(EUR, 50))
	w.Withdraw(NewAmount(USD, 30))

	if got := w.Get(USD).Value; !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("USD = %s, want 70", got)
	}

	w.Withdraw(NewAmount(EUR, 50))
	if got := w.Currencies(); len(got) != 1 || got[0] != USD {
		t.Errorf("Currencies() = %v, want [USD]", got)
	}

	clone := w.Clone()
	clone.Deposit(NewAmount(USD, 1))
	if !w.Get(USD).Value.Equal(decimal.NewFromInt(70)) {
		t.Error("Clone() shares state with original")
	}
}

func TestWallet_CurrenciesSorted(t *testing.T) {
	w := NewWallet(NewAmount(USD, 1), NewAmount(CHF, 1), NewAmount(EUR, 1))
	got := fmt.Sprint(w.Currencies())
	if got != "[CHF EUR USD]" {
		t.Errorf("Currencies() = %s, want [CHF EUR USD]", got)
	}
}

func TestFixedRates_Convert(t *testing.T) {
	conv, err := NewFixedRates(USD, map[Currency]decimal.Decimal{
		EUR: decimal.RequireFromString("1.2"),
		GBP: decimal.RequireFromString("1.5"),
	})
	if err != nil {
		t.Fatalf("NewFixedRates() error = %v", err)
	}

	now := time.Now()
	tests := []struct {
		amount Amount
		to     Currency
		want   string
	}{
		{NewAmount(EUR, 100), USD, "120"},
		{NewAmount(USD, 120), EUR, "100"},
		{NewAmount(GBP, 100), EUR, "125"},
		{NewAmount(USD, 7), USD, "7"},
	}

	for _, tt := range tests {
		got, err := conv.Convert(tt.amount, tt.to, now)
		if err != nil {
			t.Fatalf("Convert(%s, %s) error = %v", tt.amount, tt.to, err)
		}
		if !got.Value.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Convert(%s, %s) = %s, want %s", tt.amount, tt.to, got.Value, tt.want)
		}
	}

	if _, err := conv.Convert(NewAmount(JPY, 1), USD, now); !errors.Is(err, ErrNoRate) {
		t.Errorf("Convert(JPY) error = %v, want ErrNoRate", err)
	}

	if _, err := NewFixedRates(USD, map[Currency]decimal.Decimal{EUR: decimal.Zero}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("NewFixedRates(zero rate) error = %v, want ErrConfiguration", err)
	}
}

func TestWallet_Convert(t *testing.T) {
	w := NewWallet(NewAmount(USD, 100), NewAmount(EUR, 10))

	if _, err := w.Convert(USD, time.Time{}, NoConversion{}); !errors.Is(err, ErrNoRate) {
		t.Errorf("Convert() with NoConversion error = %v, want ErrNoRate", err)
	}

	conv, _ := NewFixedRates(USD, map[Currency]decimal.Decimal{EUR: decimal.NewFromInt(2)})
	total, err := w.Convert(USD, time.Time{}, conv)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !total.Value.Equal(decimal.NewFromInt(120)) {
		t.Errorf("Convert() = %s, want 120", total.Value)
	}
}

func TestError_KindMatching(t *testing.T) {
	err := fmt.Errorf("building model: %w", Errorf(KindValidation, "bad size %d", 3))

	if !errors.Is(err, ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = false, want true")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("errors.Is(err, ErrConfiguration) = true, want false")
	}
	if KindOf(err) != KindValidation {
		t.Errorf("KindOf() = %s, want %s", KindOf(err), KindValidation)
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf(plain) should be 0")
	}
	if got := Errorf(KindComputation, "x").Error(); got != "computation failure: x" {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseCurrency(t *testing.T) {
	if c, err := ParseCurrency(" eur "); err != nil || c != EUR {
		t.Errorf("ParseCurrency(eur) = %s, %v", c, err)
	}
	if _, err := ParseCurrency("EURO"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseCurrency(EURO) error = %v, want ErrValidation", err)
	}
}
