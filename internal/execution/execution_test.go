package execution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/internal/pricing"
	"github.com/tathienbao/backsim/internal/types"
)

var (
	aapl = types.NewStock("AAPL", types.USD)
	msft = types.NewStock("MSFT", types.USD)
	t0   = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func barEvent(t time.Time, asset types.Asset, open, high, low, close, volume float64) market.Event {
	return market.NewEvent(t, market.NewPriceBar(asset, open, high, low, close, volume))
}

// fixedPricing prices every fill at one price with an optional liquidity cap.
type fixedPricing struct {
	price     decimal.Decimal
	liquidity decimal.Decimal
}

func (p fixedPricing) MarketPrice(decimal.Decimal) decimal.Decimal { return p.price }
func (p fixedPricing) LowPrice(decimal.Decimal) decimal.Decimal    { return p.price }
func (p fixedPricing) HighPrice(decimal.Decimal) decimal.Decimal   { return p.price }
func (p fixedPricing) Liquidity() decimal.Decimal                  { return p.liquidity }

type unknownOrder struct{}

func (unknownOrder) ID() string         { return "unknown-1" }
func (unknownOrder) Asset() types.Asset { return aapl }
func (unknownOrder) Tag() string        { return "" }
func (unknownOrder) String() string     { return "UNKNOWN" }

func closedByID(states []order.State) map[string]order.State {
	out := make(map[string]order.State, len(states))
	for _, s := range states {
		out[s.Order.ID()] = s
	}
	return out
}

func TestEngine_MarketOrderFillsOnce(t *testing.T) {
	e := NewEngine(nil, nil)
	o := order.NewMarket(aapl, dec(10), order.WithID("m1"))
	e.Add(t0, o)

	execs := e.Execute(barEvent(t0, aapl, 100, 102, 99, 101, 1000))
	if len(execs) != 1 {
		t.Fatalf("len(executions) = %d, want 1", len(execs))
	}
	if !execs[0].Price.Equal(dec(101)) || !execs[0].Size.Equal(dec(10)) || execs[0].OrderID != "m1" {
		t.Errorf("execution = %s, want 10 @ 101 for m1", execs[0])
	}
	if !execs[0].Value().Value.Equal(dec(1010)) {
		t.Errorf("Value() = %s, want 1010", execs[0].Value())
	}

	closed := closedByID(e.DrainClosed())
	if closed["m1"].Status != types.OrderStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", closed["m1"].Status)
	}
	if len(e.Open()) != 0 {
		t.Errorf("len(Open()) = %d, want 0", len(e.Open()))
	}

	if execs := e.Execute(barEvent(t0.Add(time.Minute), aapl, 100, 102, 99, 101, 1000)); len(execs) != 0 {
		t.Errorf("second step executions = %d, want 0", len(execs))
	}
}

func TestOrderHandler_IdempotentAfterFill(t *testing.T) {
	h, err := NewHandler(order.NewMarket(aapl, dec(5)))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	ch := h.(CreateHandler)
	p := fixedPricing{price: dec(50)}

	if got := len(ch.Execute(p, t0)); got != 1 {
		t.Fatalf("first Execute() = %d executions, want 1", got)
	}
	if got := len(ch.Execute(p, t0.Add(time.Second))); got != 0 {
		t.Errorf("Execute() after fill = %d executions, want 0", got)
	}
	if ch.Cancel(t0) {
		t.Error("Cancel() after fill = true, want false")
	}
	if ch.Status() != types.OrderStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", ch.Status())
	}
}

func TestEngine_LimitOrders(t *testing.T) {
	tests := []struct {
		name      string
		size      float64
		limit     float64
		bar       [4]float64 // open, high, low, close
		wantFill  bool
		wantPrice float64
	}{
		{"buy not reached", 10, 95, [4]float64{100, 102, 96, 101}, false, 0},
		{"buy reached fills at limit", 10, 98, [4]float64{100, 102, 96, 101}, true, 98},
		{"buy below market fills at market", 10, 105, [4]float64{100, 106, 99, 101}, true, 101},
		{"sell not reached", -10, 110, [4]float64{100, 108, 99, 101}, false, 0},
		{"sell reached fills at limit", -10, 104, [4]float64{100, 108, 99, 101}, true, 104},
		{"sell below market fills at market", -10, 95, [4]float64{100, 108, 99, 101}, true, 101},
	}

	for _, tt := range tests {
		e := NewEngine(pricing.NoCostEngine{}, nil)
		e.Add(t0, order.NewLimit(aapl, dec(tt.size), dec(tt.limit)))
		execs := e.Execute(barEvent(t0, aapl, tt.bar[0], tt.bar[1], tt.bar[2], tt.bar[3], 0))

		if got := len(execs) == 1; got != tt.wantFill {
			t.Errorf("%s: filled = %v, want %v", tt.name, got, tt.wantFill)
			continue
		}
		if tt.wantFill && !execs[0].Price.Equal(dec(tt.wantPrice)) {
			t.Errorf("%s: price = %s, want %v", tt.name, execs[0].Price, tt.wantPrice)
		}
		if !tt.wantFill && len(e.Open()) != 1 {
			t.Errorf("%s: unfilled limit should stay open", tt.name)
		}
	}
}

func TestEngine_StopOrders(t *testing.T) {
	e := NewEngine(nil, nil)
	buyStop := order.NewStop(aapl, dec(10), dec(105), order.WithID("stop"))
	e.Add(t0, buyStop)

	if execs := e.Execute(barEvent(t0, aapl, 100, 104, 99, 101, 0)); len(execs) != 0 {
		t.Fatalf("stop below high filled: %v", execs)
	}

	execs := e.Execute(barEvent(t0.Add(time.Minute), aapl, 101, 107, 100, 103, 0))
	if len(execs) != 1 {
		t.Fatalf("len(executions) = %d, want 1", len(execs))
	}
	if !execs[0].Price.Equal(dec(105)) {
		t.Errorf("stop fill price = %s, want 105 (no better than the stop)", execs[0].Price)
	}
}

func TestEngine_StopLimitTriggerPersists(t *testing.T) {
	e := NewEngine(nil, nil)
	// Sell stop at 95, then sell no lower than 96.
	e.Add(t0, order.NewStopLimit(aapl, dec(-5), dec(95), dec(96)))

	// Triggered (low 94) but the high never reaches the limit.
	if execs := e.Execute(barEvent(t0, aapl, 95, 95.5, 94, 95, 0)); len(execs) != 0 {
		t.Fatalf("filled below limit: %v", execs)
	}

	// Price recovers above the stop; the trigger is remembered.
	execs := e.Execute(barEvent(t0.Add(time.Minute), aapl, 96, 98, 96, 97, 0))
	if len(execs) != 1 {
		t.Fatalf("len(executions) = %d, want 1", len(execs))
	}
	if !execs[0].Price.Equal(dec(97)) {
		t.Errorf("price = %s, want 97", execs[0].Price)
	}
}

func TestEngine_PartialFillByLiquidity(t *testing.T) {
	pe := pricing.SpreadEngine{Participation: dec(0.5)}
	e := NewEngine(pe, nil)
	e.Add(t0, order.NewMarket(aapl, dec(8), order.WithID("big")))

	execs := e.Execute(barEvent(t0, aapl, 10, 10, 10, 10, 10))
	if len(execs) != 1 || !execs[0].Size.Equal(dec(5)) {
		t.Fatalf("first step executions = %v, want one fill of 5", execs)
	}
	open := e.Open()
	if len(open) != 1 || open[0].Status != types.OrderStatusPartiallyFilled {
		t.Fatalf("open = %+v, want one PARTIALLY_FILLED order", open)
	}
	if !open[0].Remaining().Equal(dec(3)) {
		t.Errorf("Remaining() = %s, want 3", open[0].Remaining())
	}

	execs = e.Execute(barEvent(t0.Add(time.Minute), aapl, 10, 10, 10, 10, 10))
	if len(execs) != 1 || !execs[0].Size.Equal(dec(3)) {
		t.Fatalf("second step executions = %v, want one fill of 3", execs)
	}
	if closed := closedByID(e.DrainClosed()); closed["big"].Status != types.OrderStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", closed["big"].Status)
	}
}

func TestEngine_TimeInForce(t *testing.T) {
	pe := pricing.SpreadEngine{Participation: dec(0.5)}
	bar := func(at time.Time) market.Event { return barEvent(at, aapl, 10, 10, 10, 10, 10) }

	t.Run("ioc expires remainder", func(t *testing.T) {
		e := NewEngine(pe, nil)
		e.Add(t0, order.NewMarket(aapl, dec(8), order.WithID("ioc"), order.WithTimeInForce(order.IOC())))
		execs := e.Execute(bar(t0))
		if len(execs) != 1 || !execs[0].Size.Equal(dec(5)) {
			t.Fatalf("executions = %v, want fill of 5", execs)
		}
		s := closedByID(e.DrainClosed())["ioc"]
		if s.Status != types.OrderStatusExpired || !s.Filled.Equal(dec(5)) {
			t.Errorf("state = %s filled %s, want EXPIRED filled 5", s.Status, s.Filled)
		}
	})

	t.Run("fok fills nothing", func(t *testing.T) {
		e := NewEngine(pe, nil)
		e.Add(t0, order.NewMarket(aapl, dec(8), order.WithID("fok"), order.WithTimeInForce(order.FOK())))
		if execs := e.Execute(bar(t0)); len(execs) != 0 {
			t.Fatalf("executions = %v, want none", execs)
		}
		if s := closedByID(e.DrainClosed())["fok"]; s.Status != types.OrderStatusExpired {
			t.Errorf("status = %s, want EXPIRED", s.Status)
		}
	})

	t.Run("gtd expires after deadline", func(t *testing.T) {
		e := NewEngine(nil, nil)
		e.Add(t0, order.NewLimit(aapl, dec(1), dec(1), order.WithID("gtd"),
			order.WithTimeInForce(order.GTD(t0.Add(time.Hour)))))
		e.Execute(bar(t0.Add(30 * time.Minute)))
		if len(e.Open()) != 1 {
			t.Fatal("order expired before deadline")
		}
		e.Execute(bar(t0.Add(2 * time.Hour)))
		if s := closedByID(e.DrainClosed())["gtd"]; s.Status != types.OrderStatusExpired {
			t.Errorf("status = %s, want EXPIRED", s.Status)
		}
	})
}

func TestEngine_NoPriceSkips(t *testing.T) {
	e := NewEngine(nil, nil)
	e.Add(t0, order.NewMarket(aapl, dec(1)))

	if execs := e.Execute(barEvent(t0, msft, 1, 1, 1, 1, 0)); len(execs) != 0 {
		t.Fatalf("executions = %v, want none", execs)
	}
	open := e.Open()
	if len(open) != 1 || open[0].Status != types.OrderStatusAccepted {
		t.Fatalf("open = %+v, want one ACCEPTED order", open)
	}

	if execs := e.Execute(barEvent(t0.Add(time.Minute), aapl, 1, 1, 1, 1, 0)); len(execs) != 1 {
		t.Errorf("retry executions = %d, want 1", len(execs))
	}
}

func TestEngine_CancelBeforeFillInSameStep(t *testing.T) {
	e := NewEngine(nil, nil)
	target := order.NewMarket(aapl, dec(10), order.WithID("target"))
	cancel := order.NewCancel(target, order.WithID("cancel"))
	e.Add(t0, target, cancel)

	if execs := e.Execute(barEvent(t0, aapl, 1, 1, 1, 1, 0)); len(execs) != 0 {
		t.Fatalf("executions = %v, want none", execs)
	}

	closed := closedByID(e.DrainClosed())
	if closed["target"].Status != types.OrderStatusCancelled {
		t.Errorf("target status = %s, want CANCELLED", closed["target"].Status)
	}
	if closed["cancel"].Status != types.OrderStatusCompleted {
		t.Errorf("cancel status = %s, want COMPLETED", closed["cancel"].Status)
	}
}

func TestEngine_CancelCompletedOrderHasNoEffect(t *testing.T) {
	e := NewEngine(nil, nil)
	target := order.NewMarket(aapl, dec(10), order.WithID("done"))
	e.Add(t0, target)
	e.Execute(barEvent(t0, aapl, 1, 1, 1, 1, 0))
	before := closedByID(e.DrainClosed())["done"]

	e.Add(t0.Add(time.Minute), order.NewCancel(target, order.WithID("late")))
	e.Execute(barEvent(t0.Add(time.Minute), aapl, 1, 1, 1, 1, 0))

	closed := closedByID(e.DrainClosed())
	if closed["late"].Status != types.OrderStatusRejected {
		t.Errorf("cancel status = %s, want REJECTED", closed["late"].Status)
	}
	if _, ok := closed["done"]; ok {
		t.Error("completed target was closed a second time")
	}
	if before.Status != types.OrderStatusCompleted || !before.Filled.Equal(dec(10)) {
		t.Errorf("target = %s filled %s, want COMPLETED filled 10", before.Status, before.Filled)
	}
}

func TestEngine_UpdateOrder(t *testing.T) {
	e := NewEngine(nil, nil)
	limit := order.NewLimit(aapl, dec(10), dec(90), order.WithID("lim"))
	e.Add(t0, limit)
	e.Execute(barEvent(t0, aapl, 100, 101, 95, 100, 0))

	e.Add(t0.Add(time.Minute), order.NewUpdate(limit, order.NewLimit(aapl, dec(10), dec(96)), order.WithID("upd")))
	execs := e.Execute(barEvent(t0.Add(time.Minute), aapl, 100, 101, 95, 100, 0))

	if len(execs) != 1 || !execs[0].Price.Equal(dec(96)) || execs[0].OrderID != "lim" {
		t.Fatalf("executions = %v, want one fill @96 for lim", execs)
	}
	if s := closedByID(e.DrainClosed())["upd"]; s.Status != types.OrderStatusCompleted {
		t.Errorf("update status = %s, want COMPLETED", s.Status)
	}
}

func TestOrderHandler_UpdateRefusals(t *testing.T) {
	h, _ := NewHandler(order.NewMarket(aapl, dec(10), order.WithID("m")))
	ch := h.(CreateHandler)
	ch.Execute(fixedPricing{price: dec(1), liquidity: dec(6)}, t0)

	tests := []struct {
		name string
		o    order.Create
	}{
		{"different asset", order.NewMarket(msft, dec(10))},
		{"different kind", order.NewLimit(aapl, dec(10), dec(1))},
		{"direction flip", order.NewMarket(aapl, dec(-10))},
		{"below filled", order.NewMarket(aapl, dec(5))},
	}

	for _, tt := range tests {
		before := ch.State()
		if ch.Update(tt.o, t0) {
			t.Errorf("%s: Update() = true, want false", tt.name)
		}
		after := ch.State()
		if after.Status != before.Status || !after.Filled.Equal(before.Filled) || after.Order != before.Order {
			t.Errorf("%s: state changed on refused update", tt.name)
		}
	}

	if !ch.Update(order.NewMarket(aapl, dec(6)), t0) {
		t.Fatal("Update() to filled size = false, want true")
	}
	if ch.Status() != types.OrderStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", ch.Status())
	}
	if ch.Update(order.NewMarket(aapl, dec(20)), t0) {
		t.Error("Update() on final order = true, want false")
	}
}

func TestOrderHandler_CancelAfterPartialFill(t *testing.T) {
	h, _ := NewHandler(order.NewMarket(aapl, dec(10)))
	ch := h.(CreateHandler)
	execs := ch.Execute(fixedPricing{price: dec(1), liquidity: dec(4)}, t0)
	if len(execs) != 1 {
		t.Fatalf("len(executions) = %d, want 1", len(execs))
	}

	if !ch.Cancel(t0) {
		t.Fatal("Cancel() = false, want true")
	}
	s := ch.State()
	if s.Status != types.OrderStatusCancelled || !s.Filled.Equal(dec(4)) {
		t.Errorf("state = %s filled %s, want CANCELLED filled 4", s.Status, s.Filled)
	}
	if ch.Cancel(t0) {
		t.Error("second Cancel() = true, want false")
	}
}

func TestEngine_SubmissionOrder(t *testing.T) {
	e := NewEngine(nil, nil)
	e.Add(t0,
		order.NewMarket(aapl, dec(1), order.WithID("first")),
		order.NewMarket(msft, dec(1), order.WithID("second")),
		order.NewMarket(aapl, dec(-1), order.WithID("third")),
	)

	event := market.NewEvent(t0,
		market.NewPriceBar(msft, 1, 1, 1, 1, 0),
		market.NewPriceBar(aapl, 1, 1, 1, 1, 0),
	)
	execs := e.Execute(event)

	want := []string{"first", "second", "third"}
	if len(execs) != len(want) {
		t.Fatalf("len(executions) = %d, want %d", len(execs), len(want))
	}
	for i, id := range want {
		if execs[i].OrderID != id {
			t.Errorf("executions[%d].OrderID = %s, want %s", i, execs[i].OrderID, id)
		}
	}
}

func TestEngine_Rejections(t *testing.T) {
	e := NewEngine(nil, nil)
	e.Add(t0,
		order.NewMarket(aapl, decimal.Zero, order.WithID("zero")),
		order.NewLimit(aapl, dec(1), dec(-5), order.WithID("neg")),
		unknownOrder{},
	)

	if len(e.Open()) != 0 {
		t.Errorf("len(Open()) = %d, want 0", len(e.Open()))
	}
	closed := closedByID(e.DrainClosed())
	for _, id := range []string{"zero", "neg", "unknown-1"} {
		if closed[id].Status != types.OrderStatusRejected {
			t.Errorf("%s status = %s, want REJECTED", id, closed[id].Status)
		}
	}

	if _, err := NewHandler(unknownOrder{}); types.KindOf(err) != types.KindUnsupported {
		t.Errorf("NewHandler(unknown) error = %v, want unsupported", err)
	}
}

func TestEngine_Clear(t *testing.T) {
	e := NewEngine(nil, nil)
	e.Add(t0, order.NewLimit(aapl, dec(1), dec(1)))
	e.Clear()
	if len(e.Open()) != 0 || len(e.DrainClosed()) != 0 {
		t.Error("Clear() left handlers behind")
	}
}
