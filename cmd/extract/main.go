// Command extract renders the source page once and prints the raw rows and
// the points parsed from them. Nothing is stored or cached.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pricesync/internal/app"
	"pricesync/internal/config"
	"pricesync/internal/extract"
	"pricesync/internal/locale"
	"pricesync/internal/logging"
	"pricesync/internal/pipeline"
	"pricesync/internal/price"
)

type output struct {
	URL      string         `json:"url"`
	Attempts int            `json:"attempts,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Skipped  int            `json:"skipped_rows,omitempty"`
	Rows     []price.RawRow `json:"rows"`
	Points   []point        `json:"points"`
	Errors   []string       `json:"malformed,omitempty"`
}

type point struct {
	Date    string `json:"date"`
	Native  string `json:"native"`
	Display string `json:"display"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML config file")
	url := fs.String("url", "", "page to render (default: source.url)")
	htmlFile := fs.String("html", "", "parse a saved page instead of launching a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	logger := logging.New(stderr, cfg.Logging)
	if err != nil {
		logger.Error("config", "error", err)
		return err
	}
	if *url != "" {
		cfg.Source.URL = *url
	}

	out := output{URL: cfg.Source.URL}
	if *htmlFile != "" {
		b, err := os.ReadFile(*htmlFile)
		if err != nil {
			logger.Error("read page", "file", *htmlFile, "error", err)
			return err
		}
		t, err := extract.ParseTable(string(b), cfg.Source.ContainerID)
		if err != nil {
			logger.Error("parse page", "error", err)
			return err
		}
		out.URL = *htmlFile
		out.Rows, out.Skipped, out.Reason = t.Rows, t.Skipped, t.Reason
	} else {
		ex, err := app.NewExtractor(cfg, logger).Extract(ctx)
		if err != nil {
			return err
		}
		out.Rows, out.Attempts, out.Skipped, out.Reason = ex.Rows, ex.Attempts, ex.Skipped, ex.Reason
	}

	points, bad := pipeline.ParseRows(out.Rows, pipeline.Columns{Date: cfg.Source.DateColumn, Price: cfg.Source.PriceColumn})
	out.Points = make([]point, 0, len(points))
	for _, p := range points {
		out.Points = append(out.Points, point{
			Date:    price.FormatDay(p.Date),
			Native:  p.Native.String(),
			Display: locale.FormatDecimal(p.Native, 2),
		})
	}
	for _, it := range bad {
		out.Errors = append(out.Errors, it.Err.Error())
	}
	if out.Rows == nil {
		out.Rows = []price.RawRow{}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
