// Package backtest replays market data through a simulated broker and
// reports how a strategy performed.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

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

// ProgressUpdate is reported after every step.
type ProgressUpdate struct {
	RunID      string
	Step       int
	Time       time.Time
	Equity     decimal.Decimal
	Executions int
}

// ProgressCallback receives progress updates. With RunSplit it is called
// from several goroutines.
type ProgressCallback func(update ProgressUpdate)

// Config holds the settings shared by every run of a Runner.
type Config struct {
	Name         string
	Deposit      types.Wallet
	SkipWeekends bool
	Zone         *time.Location // For the weekend check, UTC when nil

	RiskFreeRate   float64
	PeriodsPerYear float64 // Steps per year for the ratios, 252 when zero
}

// StrategyFactory creates a fresh strategy for each run.
type StrategyFactory func() (strategy.Strategy, error)

// Result summarizes one run.
type Result struct {
	RunID     string
	Name      string
	Strategy  string
	Timeframe timeframe.Timeframe
	Steps     int
	Skipped   int // Events dropped by the trading day check

	StartEquity      decimal.Decimal
	EndEquity        decimal.Decimal
	TotalReturn      decimal.Decimal // As ratio (0.15 = 15%)
	AnnualizedReturn float64
	MaxDrawdown      decimal.Decimal // As ratio
	SharpeRatio      float64
	SortinoRatio     float64

	Executions    int
	ClosedTrades  int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal
	ProfitFactor  decimal.Decimal

	Trades      []account.Trade
	EquityCurve []EquityPoint
	Account     account.Account
}

// EquityPoint represents equity at a point in time.
type EquityPoint struct {
	Time     time.Time
	Equity   decimal.Decimal
	Drawdown decimal.Decimal
}

// Runner executes backtests. Every call to Run gets its own broker and
// strategy, so runs may proceed in parallel.
type Runner struct {
	cfg         Config
	feed        feed.Feed
	newStrategy StrategyFactory
	brokerOpts  []sim.Option
	journal     journal.Journal
	metrics     bool
	logger      *slog.Logger
	progress    ProgressCallback
}

// Option configures a Runner.
type Option func(*Runner)

func WithBrokerOptions(opts ...sim.Option) Option {
	return func(r *Runner) {
		r.brokerOpts = append(r.brokerOpts, opts...)
	}
}

// WithJournal records every run, its trades and a snapshot per step.
func WithJournal(j journal.Journal) Option {
	return func(r *Runner) {
		r.journal = j
	}
}

// WithMetrics exports Prometheus metrics labelled with the run id.
func WithMetrics() Option {
	return func(r *Runner) {
		r.metrics = true
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func WithProgress(cb ProgressCallback) Option {
	return func(r *Runner) {
		r.progress = cb
	}
}

// NewRunner creates a runner replaying f.
func NewRunner(cfg Config, f feed.Feed, newStrategy StrategyFactory, opts ...Option) *Runner {
	r := &Runner{
		cfg:         cfg,
		feed:        f,
		newStrategy: newStrategy,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run replays the events of the feed within tf.
func (r *Runner) Run(ctx context.Context, tf timeframe.Timeframe) (res *Result, err error) {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)

	var rec *metrics.Recorder
	if r.metrics {
		rec = metrics.NewRecorder(runID)
	}
	defer func() { rec.RecordRun(err) }()

	strat, err := r.newStrategy()
	if err != nil {
		return nil, fmt.Errorf("creating strategy: %w", err)
	}

	opts := append(slices.Clone(r.brokerOpts), sim.WithLogger(logger), sim.WithRecorder(rec))
	brk, err := sim.New(r.cfg.Deposit, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating broker: %w", err)
	}

	if r.journal != nil {
		run := journal.Run{
			ID:        runID,
			Name:      r.cfg.Name,
			Timeframe: tf.String(),
			Started:   time.Now().UTC(),
		}
		if err := r.journal.StartRun(ctx, run); err != nil {
			return nil, fmt.Errorf("journal start run: %w", err)
		}
		defer func() {
			// Record the outcome even when ctx was cancelled.
			if ferr := r.journal.FinishRun(context.WithoutCancel(ctx), runID, time.Now().UTC(), err); ferr != nil {
				logger.Error("failed to finish journal run", "error", ferr)
			}
		}()
	}

	// Stops the feed when the run ends early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := r.feed.Play(ctx, tf)
	if err != nil {
		return nil, fmt.Errorf("playing feed: %w", err)
	}

	acc, err := brk.Account()
	if err != nil {
		return nil, err
	}

	st := &runState{
		id:        runID,
		start:     acc.Equity.Value,
		highWater: acc.Equity.Value,
	}

	logger.Info("backtest started",
		"name", r.cfg.Name,
		"strategy", strat.Name(),
		"timeframe", tf.String(),
		"equity", acc.Equity.String(),
	)

	for event := range events {
		if r.cfg.SkipWeekends {
			if err := timeframe.CheckTradingDay(event.Time, r.cfg.Zone); err != nil {
				st.skipped++
				logger.Debug("event skipped", "time", event.Time, "reason", err)
				continue
			}
		}

		acc, err = r.step(ctx, brk, strat, event, acc, st)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res = r.results(st, strat.Name(), tf, acc)
	logger.Info("backtest finished",
		"steps", res.Steps,
		"skipped", res.Skipped,
		"executions", res.Executions,
		"equity", acc.Equity.String(),
		"total_return", res.TotalReturn.StringFixed(4),
	)
	return res, nil
}

// runState is the bookkeeping of a single run.
type runState struct {
	id        string
	start     decimal.Decimal
	highWater decimal.Decimal
	curve     []EquityPoint
	steps     int
	skipped   int
	journaled int
}

func (r *Runner) step(
	ctx context.Context,
	brk *sim.Broker,
	strat strategy.Strategy,
	event market.Event,
	acc account.Account,
	st *runState,
) (account.Account, error) {
	orders := strat.Generate(event, acc)
	next, err := brk.Place(orders, event)
	if err != nil {
		return acc, fmt.Errorf("step %d at %s: %w", st.steps+1, event.Time.Format(time.RFC3339Nano), err)
	}
	st.steps++
	st.record(event.Time, next.Equity.Value)

	if r.journal != nil {
		for _, t := range next.Trades[st.journaled:] {
			if err := r.journal.SaveTrade(ctx, st.id, t); err != nil {
				return next, fmt.Errorf("journal trade %s: %w", t.ExecutionID, err)
			}
		}
		if err := r.journal.SaveSnapshot(ctx, st.id, journal.SnapshotOf(next)); err != nil {
			return next, fmt.Errorf("journal snapshot: %w", err)
		}
	}
	st.journaled = len(next.Trades)

	if r.progress != nil {
		r.progress(ProgressUpdate{
			RunID:      st.id,
			Step:       st.steps,
			Time:       event.Time,
			Equity:     next.Equity.Value,
			Executions: len(next.Trades),
		})
	}
	return next, nil
}

func (st *runState) record(t time.Time, equity decimal.Decimal) {
	if equity.GreaterThan(st.highWater) {
		st.highWater = equity
	}
	drawdown := decimal.Zero
	if st.highWater.IsPositive() {
		drawdown = st.highWater.Sub(equity).Div(st.highWater)
	}
	st.curve = append(st.curve, EquityPoint{Time: t, Equity: equity, Drawdown: drawdown})
}

func (r *Runner) results(st *runState, strategyName string, tf timeframe.Timeframe, acc account.Account) *Result {
	res := &Result{
		RunID:       st.id,
		Name:        r.cfg.Name,
		Strategy:    strategyName,
		Timeframe:   tf,
		Steps:       st.steps,
		Skipped:     st.skipped,
		StartEquity: st.start,
		EndEquity:   acc.Equity.Value,
		Executions:  len(acc.Trades),
		Trades:      acc.Trades,
		EquityCurve: st.curve,
		Account:     acc,
	}

	if st.start.IsPositive() {
		res.TotalReturn = res.EndEquity.Sub(st.start).Div(st.start)
	}
	res.AnnualizedReturn = annualize(st.curve, res.TotalReturn.InexactFloat64())

	m := NewMetrics(res, r.cfg.RiskFreeRate, r.cfg.PeriodsPerYear)
	res.MaxDrawdown = m.MaxDrawdown()
	res.SharpeRatio = m.SharpeRatio()
	res.SortinoRatio = m.SortinoRatio()
	res.WinRate = m.WinRate()
	res.ProfitFactor = m.ProfitFactor()

	for _, t := range m.closing() {
		res.ClosedTrades++
		switch pnl := t.NetPNL().Value; {
		case pnl.IsPositive():
			res.WinningTrades++
		case pnl.IsNegative():
			res.LosingTrades++
		}
	}
	return res
}

// annualize scales a total return to a yearly rate over the span of the
// equity curve. Spans shorter than a few days return the total unchanged.
func annualize(curve []EquityPoint, total float64) float64 {
	if len(curve) < 2 {
		return total
	}
	span, err := timeframe.New(curve[0].Time, curve[len(curve)-1].Time)
	if err != nil || span.Duration().Hours()/24/365 < 0.01 {
		return total
	}
	annual, err := span.Annualize(total)
	if err != nil {
		return total
	}
	return annual
}

// RunSplit splits tf into consecutive periods and runs each one in
// parallel with its own broker. An infinite tf is replaced by the span of
// the feed. Results are in timeframe order.
func (r *Runner) RunSplit(ctx context.Context, tf timeframe.Timeframe, period timeframe.Period) ([]*Result, error) {
	if tf.IsInfinite() {
		tf = r.feed.Timeframe()
	}
	if tf.IsInfinite() {
		return nil, types.Errorf(types.KindValidation, "cannot split the timeframe of an empty feed")
	}

	parts, err := tf.Split(period)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, types.Errorf(types.KindValidation, "timeframe %s is too short to split by %s", tf, period)
	}

	results := make([]*Result, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, part := range parts {
		g.Go(func() error {
			res, err := r.Run(gctx, part)
			if err != nil {
				return fmt.Errorf("run %s: %w", part, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
