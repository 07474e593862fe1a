package order

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

var (
	aapl = types.NewStock("AAPL", types.USD)
	t0   = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
)

func TestNewMarket_Options(t *testing.T) {
	o := NewMarket(aapl, decimal.NewFromInt(10), WithID("m1"), WithTag("entry"), WithTimeInForce(IOC()))

	if o.ID() != "m1" || o.Tag() != "entry" {
		t.Errorf("ID/Tag = %s/%s, want m1/entry", o.ID(), o.Tag())
	}
	if !o.TimeInForce().IsImmediate() {
		t.Error("TimeInForce().IsImmediate() = false, want true")
	}
	if !o.IsBuy() || o.IsSell() {
		t.Error("positive size should be a buy")
	}

	generated := NewMarket(aapl, decimal.NewFromInt(1))
	if generated.ID() == "" || generated.ID() == NewMarket(aapl, decimal.NewFromInt(1)).ID() {
		t.Errorf("generated ids should be unique, got %q", generated.ID())
	}
	if generated.TimeInForce().String() != "GTC" {
		t.Errorf("default TimeInForce = %s, want GTC", generated.TimeInForce())
	}
}

func TestModifyOrders_TargetAsset(t *testing.T) {
	target := NewLimit(aapl, decimal.NewFromInt(5), decimal.NewFromInt(100), WithID("l1"))
	cancel := NewCancel(target)
	update := NewUpdate(target, NewLimit(aapl, decimal.NewFromInt(5), decimal.NewFromInt(101)))

	if cancel.Asset().Key() != "AAPL" || cancel.Target().ID() != "l1" {
		t.Errorf("cancel = %s", cancel)
	}
	if update.Target().ID() != "l1" || !strings.Contains(update.String(), "target=l1") {
		t.Errorf("update = %s", update)
	}
	if update.Replacement().ID() != "l1" {
		t.Errorf("Replacement().ID() = %s, want l1", update.Replacement().ID())
	}
	if lim, ok := update.Replacement().(*LimitOrder); !ok || !lim.Limit().Equal(decimal.NewFromInt(101)) {
		t.Errorf("Replacement() = %s, want limit @101", update.Replacement())
	}
}

func TestKind(t *testing.T) {
	one := decimal.NewFromInt(1)
	m := NewMarket(aapl, one)
	tests := []struct {
		o    Order
		want string
	}{
		{m, "market"},
		{NewLimit(aapl, one, one), "limit"},
		{NewStop(aapl, one, one), "stop"},
		{NewStopLimit(aapl, one, one, one), "stop_limit"},
		{NewCancel(m), "cancel"},
		{NewUpdate(m, m), "update"},
	}

	for _, tt := range tests {
		if got := Kind(tt.o); got != tt.want {
			t.Errorf("Kind(%s) = %s, want %s", tt.o, got, tt.want)
		}
	}
}

func TestState_FillLifecycle(t *testing.T) {
	s := NewState(NewMarket(aapl, decimal.NewFromInt(-10)))

	if !s.Accept(t0) || s.Status != types.OrderStatusAccepted {
		t.Fatalf("Accept() status = %s", s.Status)
	}
	if s.Accept(t0) {
		t.Error("second Accept() = true, want false")
	}

	s.Fill(decimal.NewFromInt(-4), t0)
	if s.Status != types.OrderStatusPartiallyFilled {
		t.Errorf("status = %s, want PARTIALLY_FILLED", s.Status)
	}
	if !s.Remaining().Equal(decimal.NewFromInt(-6)) {
		t.Errorf("Remaining() = %s, want -6", s.Remaining())
	}

	s.Fill(decimal.NewFromInt(-6), t0.Add(time.Minute))
	if s.Status != types.OrderStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", s.Status)
	}
	if !s.ClosedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("ClosedAt = %v", s.ClosedAt)
	}
}

func TestState_NoExitFromFinal(t *testing.T) {
	finals := []func(*State, time.Time) bool{
		(*State).Complete,
		(*State).Cancel,
		(*State).Reject,
		(*State).Expire,
	}

	for i, closeFn := range finals {
		s := NewState(NewMarket(aapl, decimal.NewFromInt(1)))
		if !closeFn(s, t0) {
			t.Fatalf("close %d on open order = false", i)
		}
		status := s.Status

		if s.Cancel(t0) || s.Expire(t0) || s.Reject(t0) || s.Complete(t0) || s.Accept(t0) {
			t.Errorf("transition out of %s succeeded", status)
		}
		if s.Fill(decimal.NewFromInt(1), t0) {
			t.Errorf("Fill() on %s succeeded", status)
		}
		if s.Status != status {
			t.Errorf("status = %s, want %s", s.Status, status)
		}
	}
}

func TestTimeInForce_IsExpired(t *testing.T) {
	tests := []struct {
		name string
		tif  TimeInForce
		now  time.Time
		want bool
	}{
		{"gtc", GTC(), t0.AddDate(1, 0, 0), false},
		{"gtd before", GTD(t0.Add(time.Hour)), t0.Add(time.Hour), false},
		{"gtd after", GTD(t0.Add(time.Hour)), t0.Add(time.Hour + time.Second), true},
		{"day same date", DAY(), t0.Add(time.Hour), false},
		{"day next date", DAY(), t0.AddDate(0, 0, 1), true},
	}

	for _, tt := range tests {
		if got := tt.tif.IsExpired(t0, tt.now); got != tt.want {
			t.Errorf("%s: IsExpired() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTimeInForce_CanFill(t *testing.T) {
	remaining := decimal.NewFromInt(10)
	if FOK().CanFill(decimal.NewFromInt(5), remaining) {
		t.Error("FOK partial CanFill() = true, want false")
	}
	if !FOK().CanFill(remaining, remaining) {
		t.Error("FOK full CanFill() = false, want true")
	}
	if !IOC().CanFill(decimal.NewFromInt(5), remaining) {
		t.Error("IOC partial CanFill() = false, want true")
	}
	if GTC().CanFill(decimal.Zero, remaining) {
		t.Error("CanFill(0) = true, want false")
	}
}
