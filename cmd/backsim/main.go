// Package main is the entry point for the backtesting simulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/tathienbao/backsim/internal/backtest"
	"github.com/tathienbao/backsim/internal/broker/sim"
	"github.com/tathienbao/backsim/internal/config"
	"github.com/tathienbao/backsim/internal/feed"
	"github.com/tathienbao/backsim/internal/journal"
	"github.com/tathienbao/backsim/internal/metrics"
	"github.com/tathienbao/backsim/internal/risk"
	"github.com/tathienbao/backsim/internal/strategy"
	"github.com/tathienbao/backsim/internal/types"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "backtest":
		cmdBacktest(os.Args[2:])
	case "runs":
		cmdRuns(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`backsim - simulated broker backtesting

Usage:
  backsim <command> [options]

Commands:
  backtest   Replay price data through the simulated broker
  runs       List the runs recorded in the journal
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  backsim backtest --config config.yaml --data data/SPY_1d.csv
  backsim backtest --config config.yaml --split 1y
  backsim runs --config config.yaml

Use "backsim <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("backsim version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	tf, err := cfg.Timeframe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Base currency: %s\n", cfg.BaseCurrency())
	fmt.Printf("  Account model: %s\n", cfg.Account.Model)
	fmt.Printf("  Strategy:      %s\n", cfg.Strategy.Name)
	fmt.Printf("  Timeframe:     %s\n", tf)
}

func cmdBacktest(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	dataPath := fs.String("data", "", "Path to CSV data file (overrides data.path)")
	symbol := fs.String("symbol", "", "Symbol of the data file (overrides data.symbol)")
	strategyName := fs.String("strategy", "", "Strategy: alternating, meanrev")
	split := fs.String("split", "", "Run each period separately, e.g. 6m or 1y")
	pace := fs.Float64("pace", 0, "Replay at most this many events per second")
	hold := fs.Bool("hold", false, "Keep the metrics endpoint up until interrupted")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}
	if *symbol != "" {
		cfg.Data.Symbol = *symbol
	}
	if *strategyName != "" {
		cfg.Strategy.Name = *strategyName
	}
	if *split != "" {
		cfg.Backtest.Split = *split
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Data.Path == "" {
		fmt.Fprintln(os.Stderr, "Error: --data or data.path is required")
		fs.Usage()
		os.Exit(1)
	}

	logger, err := newLogger(cfg, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runBacktest(ctx, cfg, *pace, *hold, logger); err != nil {
		logger.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func runBacktest(ctx context.Context, cfg *config.Config, pace float64, hold bool, logger *slog.Logger) error {
	zone, err := cfg.Location()
	if err != nil {
		return err
	}
	tf, err := cfg.Timeframe()
	if err != nil {
		return err
	}
	period, splitting, err := cfg.SplitPeriod()
	if err != nil {
		return err
	}

	data := feed.NewCSVFeed(cfg.DataCurrency(), zone, logger)
	if err := data.LoadFile(cfg.Data.Path, cfg.Data.Symbol); err != nil {
		return err
	}
	var f feed.Feed = data
	if pace > 0 {
		f = feed.NewPacedFeed(data, pace)
	}

	conv, err := cfg.Converter()
	if err != nil {
		return err
	}
	brokerOpts, err := brokerOptions(cfg, conv)
	if err != nil {
		return err
	}
	deposit, err := cfg.Deposit()
	if err != nil {
		return err
	}

	opts := []backtest.Option{
		backtest.WithBrokerOptions(brokerOpts...),
		backtest.WithLogger(logger),
	}

	if cfg.Metrics.Enabled {
		srvCfg := metrics.DefaultServerConfig()
		srvCfg.Port = cfg.Metrics.Port
		srvCfg.MetricsPath = cfg.Metrics.Path
		srv := metrics.NewServer(srvCfg, logger)
		srv.AddProbe("feed", func() error {
			if data.Len() == 0 {
				return fmt.Errorf("no events loaded from %s", cfg.Data.Path)
			}
			return nil
		})
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown", "error", err)
			}
		}()
		opts = append(opts, backtest.WithMetrics())
	}

	if cfg.Journal.Enabled {
		j, err := journal.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, backtest.WithJournal(j))
	}

	limits := cfg.RiskLimits()
	newStrategy := func() (strategy.Strategy, error) {
		s, err := cfg.NewStrategy()
		if err != nil || !limits.Enabled() {
			return s, err
		}
		g, err := risk.NewGuard(s, limits, conv, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	}

	runner := backtest.NewRunner(backtest.Config{
		Name:         filepath.Base(cfg.Data.Path),
		Deposit:      deposit,
		SkipWeekends: cfg.Backtest.SkipWeekends,
		Zone:         zone,
	}, f, newStrategy, opts...)

	logger.Info("starting backtest",
		"data", cfg.Data.Path,
		"strategy", cfg.Strategy.Name,
		"timeframe", tf.String(),
		"deposit", deposit.String(),
	)

	if splitting {
		results, err := runner.RunSplit(ctx, tf, period)
		if err != nil {
			return err
		}
		if err := backtest.SplitReport(os.Stdout, results); err != nil {
			return err
		}
	} else {
		result, err := runner.Run(ctx, tf)
		if err != nil {
			return err
		}
		if err := result.Report(os.Stdout); err != nil {
			return err
		}
	}

	if hold && cfg.Metrics.Enabled {
		logger.Info("backtest done, serving metrics until interrupted", "port", cfg.Metrics.Port)
		<-ctx.Done()
	}
	return nil
}

func brokerOptions(cfg *config.Config, conv types.Converter) ([]sim.Option, error) {
	model, err := cfg.AccountModel()
	if err != nil {
		return nil, err
	}
	return []sim.Option{
		sim.WithBaseCurrency(cfg.BaseCurrency()),
		sim.WithAccountModel(model),
		sim.WithFeeModel(cfg.FeeModel()),
		sim.WithPricingEngine(cfg.PricingEngine()),
		sim.WithConverter(conv),
	}, nil
}

func cmdRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	j, err := journal.OpenSQLite(ctx, cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	runs, err := j.Runs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTIMEFRAME\tSTARTED\tSTATUS")
	for _, r := range runs {
		status := "running"
		switch {
		case r.Error != "":
			status = "failed: " + r.Error
		case r.Finished != nil:
			status = "done in " + r.Finished.Sub(r.Started).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Timeframe, r.Started.Format(time.RFC3339), status)
	}
	tw.Flush()
}

func newLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
