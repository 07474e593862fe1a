package backtest

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/broker/sim"
	"github.com/tathienbao/backsim/internal/feed"
	"github.com/tathienbao/backsim/internal/journal"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/metrics"
	"github.com/tathienbao/backsim/internal/strategy"
	"github.com/tathienbao/backsim/internal/timeframe"
	"github.com/tathienbao/backsim/internal/types"
)

var abc = types.NewStock("ABC", types.USD)

// day returns 16:00 UTC on the given day of January 2024. Jan 2 is a
// Tuesday.
func day(d int) time.Time {
	return time.Date(2024, 1, d, 16, 0, 0, 0, time.UTC)
}

func bar(t time.Time, close float64) market.Event {
	return market.NewEvent(t, market.NewPriceBar(abc, close, close+1, close-1, close, 1000))
}

// weekFeed holds closes of 100, 110, 105 and 120 from Tuesday to Friday.
func weekFeed() *feed.MemoryFeed {
	return feed.NewMemoryFeed(
		bar(day(2), 100),
		bar(day(3), 110),
		bar(day(4), 105),
		bar(day(5), 120),
	)
}

func alternating() (strategy.Strategy, error) {
	return strategy.NewAlternating(1, decimal.NewFromInt(10)), nil
}

func testConfig() Config {
	return Config{
		Name:    "test",
		Deposit: types.NewWallet(types.NewAmount(types.USD, 10000)),
	}
}

func TestRunner_Run(t *testing.T) {
	r := NewRunner(testConfig(), weekFeed(), alternating)

	res, err := r.Run(context.Background(), timeframe.Infinite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Steps != 4 {
		t.Errorf("Steps = %d, want 4", res.Steps)
	}
	if res.Strategy != "alternating" {
		t.Errorf("Strategy = %q, want alternating", res.Strategy)
	}
	if !res.StartEquity.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("StartEquity = %s, want 10000", res.StartEquity)
	}
	// Buy 100 sell 110, buy 105 sell 120, 10 shares each.
	if !res.EndEquity.Equal(decimal.NewFromInt(10250)) {
		t.Errorf("EndEquity = %s, want 10250", res.EndEquity)
	}
	if want := decimal.RequireFromString("0.025"); !res.TotalReturn.Equal(want) {
		t.Errorf("TotalReturn = %s, want %s", res.TotalReturn, want)
	}
	if res.Executions != 4 {
		t.Errorf("Executions = %d, want 4", res.Executions)
	}
	if res.ClosedTrades != 2 || res.WinningTrades != 2 || res.LosingTrades != 0 {
		t.Errorf("closed/won/lost = %d/%d/%d, want 2/2/0", res.ClosedTrades, res.WinningTrades, res.LosingTrades)
	}
	if !res.WinRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("WinRate = %s, want 1", res.WinRate)
	}
	if !res.MaxDrawdown.IsZero() {
		t.Errorf("MaxDrawdown = %s, want 0", res.MaxDrawdown)
	}
	if len(res.EquityCurve) != 4 {
		t.Errorf("len(EquityCurve) = %d, want 4", len(res.EquityCurve))
	}
	if len(res.Account.Positions) != 0 {
		t.Errorf("open positions = %d, want 0", len(res.Account.Positions))
	}
}

func TestRunner_NoTrades(t *testing.T) {
	idle := func() (strategy.Strategy, error) {
		return strategy.NewMulti("idle"), nil
	}
	r := NewRunner(testConfig(), weekFeed(), idle)

	res, err := r.Run(context.Background(), timeframe.Infinite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Executions != 0 {
		t.Errorf("Executions = %d, want 0", res.Executions)
	}
	if !res.EndEquity.Equal(res.StartEquity) {
		t.Errorf("EndEquity = %s, want %s", res.EndEquity, res.StartEquity)
	}
	if res.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %v, want 0", res.SharpeRatio)
	}
}

func TestRunner_Timeframe(t *testing.T) {
	r := NewRunner(testConfig(), weekFeed(), alternating)

	res, err := r.Run(context.Background(), timeframe.MustNew(day(3), day(5)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Steps != 2 {
		t.Errorf("Steps = %d, want 2", res.Steps)
	}
	// Buy at 110, sell at 105.
	if !res.EndEquity.Equal(decimal.NewFromInt(9950)) {
		t.Errorf("EndEquity = %s, want 9950", res.EndEquity)
	}
	if res.LosingTrades != 1 {
		t.Errorf("LosingTrades = %d, want 1", res.LosingTrades)
	}
	if want := decimal.RequireFromString("0.005"); !res.MaxDrawdown.Equal(want) {
		t.Errorf("MaxDrawdown = %s, want %s", res.MaxDrawdown, want)
	}
}

func TestRunner_SkipWeekends(t *testing.T) {
	f := weekFeed()
	f.Add(bar(day(6), 130)) // Saturday

	cfg := testConfig()
	cfg.SkipWeekends = true
	r := NewRunner(cfg, f, alternating)

	res, err := r.Run(context.Background(), timeframe.Infinite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Steps != 4 || res.Skipped != 1 {
		t.Errorf("steps/skipped = %d/%d, want 4/1", res.Steps, res.Skipped)
	}
}

func TestRunner_BrokerOptions(t *testing.T) {
	r := NewRunner(testConfig(), weekFeed(), alternating,
		WithBrokerOptions(sim.WithFeeModel(account.PerUnitFee{PerUnit: decimal.NewFromInt(1)})),
	)

	res, err := r.Run(context.Background(), timeframe.Infinite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 250 profit minus 4 fills of 10 shares at 1 per share.
	if !res.EndEquity.Equal(decimal.NewFromInt(10210)) {
		t.Errorf("EndEquity = %s, want 10210", res.EndEquity)
	}
	if got := res.Account.Fees().Get(types.USD).Value; !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("fees = %s, want 40", got)
	}
}

func TestRunner_Journal(t *testing.T) {
	ctx := context.Background()
	j, err := journal.OpenSQLite(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer j.Close()

	r := NewRunner(testConfig(), weekFeed(), alternating, WithJournal(j))
	res, err := r.Run(ctx, timeframe.Infinite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	trades, err := j.Trades(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Trades() error = %v", err)
	}
	if len(trades) != 4 {
		t.Errorf("journaled trades = %d, want 4", len(trades))
	}

	snaps, err := j.Snapshots(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(snaps) != 4 {
		t.Fatalf("journaled snapshots = %d, want 4", len(snaps))
	}
	if !snaps[3].Equity.Equal(decimal.NewFromInt(10250)) {
		t.Errorf("last snapshot equity = %s, want 10250", snaps[3].Equity)
	}

	runs, err := j.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Finished == nil || runs[0].Error != "" {
		t.Errorf("run = %+v, want finished without error", runs[0])
	}
}

func TestRunner_Metrics(t *testing.T) {
	r := NewRunner(testConfig(), weekFeed(), alternating, WithMetrics())

	res, err := r.Run(context.Background(), timeframe.Infinite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, side := range []string{"LONG", "SHORT"} {
		c := metrics.ExecutionsTotal.WithLabelValues(res.RunID, "ABC", side)
		if got := counterValue(t, c); got != 2 {
			t.Errorf("executions %s = %v, want 2", side, got)
		}
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRunner_Progress(t *testing.T) {
	var steps []int
	r := NewRunner(testConfig(), weekFeed(), alternating, WithProgress(func(u ProgressUpdate) {
		steps = append(steps, u.Step)
	}))

	if _, err := r.Run(context.Background(), timeframe.Infinite); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(steps) != 4 || steps[3] != 4 {
		t.Errorf("progress steps = %v, want [1 2 3 4]", steps)
	}
}

func TestRunner_StrategyError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRunner(testConfig(), weekFeed(), func() (strategy.Strategy, error) {
		return nil, boom
	})

	if _, err := r.Run(context.Background(), timeframe.Infinite); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestRunner_BrokerError(t *testing.T) {
	eur := types.NewStock("SAP", types.EUR)
	f := feed.NewMemoryFeed(market.NewEvent(day(2), market.NewPriceBar(eur, 50, 51, 49, 50, 100)))
	buy := func() (strategy.Strategy, error) {
		return strategy.NewAlternating(1, decimal.NewFromInt(1)), nil
	}

	r := NewRunner(testConfig(), f, buy)
	_, err := r.Run(context.Background(), timeframe.Infinite)
	if !errors.Is(err, types.ErrNoRate) {
		t.Errorf("Run() error = %v, want ErrNoRate", err)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(testConfig(), weekFeed(), alternating)
	if _, err := r.Run(ctx, timeframe.Infinite); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunner_RunSplit(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)
	r := NewRunner(testConfig(), weekFeed(), alternating, WithProgress(func(u ProgressUpdate) {
		mu.Lock()
		seen[u.RunID]++
		mu.Unlock()
	}))

	results, err := r.RunSplit(context.Background(), timeframe.Infinite, timeframe.Days(2))
	if err != nil {
		t.Fatalf("RunSplit() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	tests := []struct {
		steps  int
		equity int64
	}{
		{2, 10100}, // Buy 100, sell 110
		{2, 10150}, // Buy 105, sell 120
	}
	for i, tt := range tests {
		res := results[i]
		if res.Steps != tt.steps {
			t.Errorf("results[%d].Steps = %d, want %d", i, res.Steps, tt.steps)
		}
		if !res.EndEquity.Equal(decimal.NewFromInt(tt.equity)) {
			t.Errorf("results[%d].EndEquity = %s, want %d", i, res.EndEquity, tt.equity)
		}
	}
	if results[0].RunID == results[1].RunID {
		t.Error("split runs share a run id")
	}
	if len(seen) != 2 {
		t.Errorf("progress from %d runs, want 2", len(seen))
	}
}

func TestRunner_RunSplitEmptyFeed(t *testing.T) {
	r := NewRunner(testConfig(), feed.NewMemoryFeed(), alternating)

	_, err := r.RunSplit(context.Background(), timeframe.Infinite, timeframe.Days(1))
	if types.KindOf(err) != types.KindValidation {
		t.Errorf("RunSplit() error = %v, want validation error", err)
	}
}

func TestResult_Report(t *testing.T) {
	r := NewRunner(testConfig(), weekFeed(), alternating)
	res, err := r.Run(context.Background(), timeframe.Infinite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var buf bytes.Buffer
	if err := res.Report(&buf); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	for _, want := range []string{"=== test (alternating) ===", "10250.00 USD", "2.50%", "2 won, 0 lost"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := SplitReport(&buf, []*Result{res}); err != nil {
		t.Fatalf("SplitReport() error = %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("split report has %d lines, want 2", lines)
	}
}
