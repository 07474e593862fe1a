package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Report writes a human readable summary of the run.
func (r *Result) Report(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cur := r.Account.BaseCurrency

	fmt.Fprintf(tw, "=== %s (%s) ===\n", r.Name, r.Strategy)
	fmt.Fprintf(tw, "Run:\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Timeframe:\t%s\n", r.Timeframe)
	fmt.Fprintf(tw, "Steps:\t%d (%d skipped)\n", r.Steps, r.Skipped)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Starting equity:\t%s %s\n", r.StartEquity.StringFixed(2), cur)
	fmt.Fprintf(tw, "Ending equity:\t%s %s\n", r.EndEquity.StringFixed(2), cur)
	fmt.Fprintf(tw, "Total return:\t%s%%\n", r.TotalReturn.Mul(hundred).StringFixed(2))
	fmt.Fprintf(tw, "Annualized return:\t%.2f%%\n", r.AnnualizedReturn*100)
	fmt.Fprintf(tw, "Max drawdown:\t%s%%\n", r.MaxDrawdown.Mul(hundred).StringFixed(2))
	fmt.Fprintf(tw, "Sharpe ratio:\t%.2f\n", r.SharpeRatio)
	fmt.Fprintf(tw, "Sortino ratio:\t%.2f\n", r.SortinoRatio)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Executions:\t%d\n", r.Executions)
	fmt.Fprintf(tw, "Closed trades:\t%d (%d won, %d lost)\n", r.ClosedTrades, r.WinningTrades, r.LosingTrades)
	fmt.Fprintf(tw, "Win rate:\t%s%%\n", r.WinRate.Mul(hundred).StringFixed(2))
	fmt.Fprintf(tw, "Profit factor:\t%s\n", r.ProfitFactor.StringFixed(2))
	fmt.Fprintf(tw, "Fees:\t%s\n", r.Account.Fees())
	fmt.Fprintf(tw, "Open positions:\t%d\n", len(r.Account.Positions))

	return tw.Flush()
}

// SplitReport writes one line per run of a split backtest.
func SplitReport(w io.Writer, results []*Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Timeframe\tSteps\tReturn %\tMax DD %\tSharpe\tExecutions\t")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.2f\t%d\t\n",
			r.Timeframe,
			r.Steps,
			r.TotalReturn.Mul(hundred).StringFixed(2),
			r.MaxDrawdown.Mul(hundred).StringFixed(2),
			r.SharpeRatio,
			r.Executions,
		)
	}
	return tw.Flush()
}
