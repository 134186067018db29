// Command saldo-report prints the summary of one period, or the detail of
// one category within it, as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"saldo/internal/aggregate"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/period"
	"saldo/internal/services"
)

type options struct {
	period   string
	category string
	income   bool
	timeout  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.period, "period", "", "period key MMYYYY (default: current month)")
	flag.StringVar(&opts.category, "category", "", "print the detail of this category instead of the summary")
	flag.BoolVar(&opts.income, "income", false, "print the income detail instead of the summary")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("warn", "text"))
	// Logs go to stderr so stdout stays valid JSON.
	lvl, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: lvl, Format: cfg.LogFormat, Component: log.ComponentReport, Output: os.Stderr})
	log.SetDefault(logger)
	loc := cli.MustLocation(logger, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg, loc)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	cleanup := func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	}
	defer cleanup()

	finance := services.NewFinanceService(result.Source, aggregate.New(core.DefaultCatalog(), loc), nil, nil)

	out, err := run(ctx, finance, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "saldo-report:", err)
		cleanup()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		cli.Fatal(logger, "Failed to write report", err)
	}
}

// run resolves the requested report. Only terminal states are returned.
func run(ctx context.Context, finance *services.FinanceService, opts options) (any, error) {
	key := finance.CurrentPeriod()
	if strings.TrimSpace(opts.period) != "" {
		k, err := period.Parse(opts.period)
		if err != nil {
			return nil, err
		}
		key = k
	}

	switch {
	case opts.category != "" && opts.income:
		return nil, fmt.Errorf("-category and -income are mutually exclusive")
	case opts.category != "":
		c, err := core.ParseCategory(opts.category)
		if err != nil {
			return nil, err
		}
		d, err := core.Unwrap(finance.GetCategoryPeriodDetail(ctx, c, key))
		if err != nil {
			return nil, err
		}
		return newDetailReport(d, c.Name()), nil
	case opts.income:
		d, err := core.Unwrap(finance.GetIncomePeriodDetail(ctx, key))
		if err != nil {
			return nil, err
		}
		return newDetailReport(d, "Income"), nil
	default:
		s, err := core.Unwrap(finance.GetPeriodSummary(ctx, key))
		if err != nil {
			return nil, err
		}
		return newSummaryReport(s), nil
	}
}
