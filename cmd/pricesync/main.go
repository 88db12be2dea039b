// Command pricesync ingests the instrument's daily closes into the price
// store and reconciles stored rates.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pricesync/internal/app"
	"pricesync/internal/config"
	"pricesync/internal/logging"
	"pricesync/internal/pipeline"
	"pricesync/internal/reference"
	"pricesync/internal/scheduler"
)

const usage = `Usage:
  pricesync [-config FILE] [-dry-run] <command> [flags]

Commands:
  full                 extract, convert and insert every listed day
  incremental          insert only days not yet stored
  recompute            reconvert stored native prices and update price and rate
  reference -file F    set stored rates from a date,rate table
  import -file F       ingest closes from a tab-separated OHLCV export
  schedule [-op OP]    run OP (default incremental) on the configured cron
  migrate              create the price table if needed
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("pricesync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML config file")
	dryRun := fs.Bool("dry-run", false, "run against an in-memory copy of the store")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg, err := config.Load(*cfgPath)
	logger := logging.New(stderr, cfg.Logging)
	if err != nil {
		logger.Error("config", "error", err)
		return err
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	op, err := parseCommand(cmd, cmdArgs, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return errUsage
	}

	a, err := app.New(ctx, cfg, logger, app.Options{DryRun: *dryRun})
	if err != nil {
		logger.Error("cannot start", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close", "error", err)
		}
	}()

	return op(ctx, a)
}

type operation func(ctx context.Context, a *app.App) error

func parseCommand(name string, args []string, stderr io.Writer) (operation, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch name {
	case "full", "incremental", "recompute":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, a *app.App) error {
			runOnce(ctx, a, name)
			return nil
		}, nil

	case "reference":
		file := fs.String("file", "", "date,rate table (CSV or TSV)")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if *file == "" {
			return nil, errors.New("reference needs -file")
		}
		return func(ctx context.Context, a *app.App) error {
			table, err := reference.Load(*file)
			if err != nil {
				a.Logger.Error("cannot load reference table", "file", *file, "error", err)
				return err
			}
			a.Logger.Info("reference table loaded", "days", table.Len(), "skipped_lines", table.Skipped)
			a.Orchestrator.BackfillReference(ctx, table)
			return nil
		}, nil

	case "import":
		file := fs.String("file", "", "tab-separated OHLCV export")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if *file == "" {
			return nil, errors.New("import needs -file")
		}
		return func(ctx context.Context, a *app.App) error {
			bars, skipped, err := reference.LoadBars(*file)
			if err != nil {
				a.Logger.Error("cannot load bar file", "file", *file, "skipped_lines", skipped, "error", err)
				return err
			}
			a.Logger.Info("bar file loaded", "bars", len(bars), "skipped_lines", skipped)
			a.Orchestrator.Import(ctx, reference.Points(bars))
			return nil
		}, nil

	case "schedule":
		opName := fs.String("op", "incremental", "operation to run: full, incremental or recompute")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		switch *opName {
		case "full", "incremental", "recompute":
		default:
			return nil, fmt.Errorf("unknown scheduled operation %q", *opName)
		}
		return func(ctx context.Context, a *app.App) error {
			s := scheduler.New(ctx, a.Config.Location(), a.Logger)
			id, err := s.Register(*opName, a.Config.Schedule.Cron, func(ctx context.Context) {
				runOnce(ctx, a, *opName)
			})
			if err != nil {
				a.Logger.Error("bad schedule", "error", err)
				return err
			}
			a.Logger.Info("waiting for schedule", "cron", a.Config.Schedule.Cron, "next", s.Next(id))
			s.Run(ctx)
			return nil
		}, nil

	case "migrate":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(_ context.Context, a *app.App) error {
			// Opening the store already created the table.
			a.Logger.Info("price table ready", "driver", a.Config.Database.Driver, "table", a.Config.Database.Table)
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
}

func runOnce(ctx context.Context, a *app.App, name string) pipeline.Report {
	o := a.Orchestrator
	switch name {
	case "full":
		return o.FullBackfill(ctx)
	case "recompute":
		return o.RecomputeRates(ctx)
	default:
		return o.IncrementalBackfill(ctx)
	}
}
