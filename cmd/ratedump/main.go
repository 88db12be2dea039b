// Command ratedump asks every configured rate provider for one day and prints
// each answer, including the live-only ones the chain would skip.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pricesync/internal/app"
	"pricesync/internal/config"
	"pricesync/internal/convert"
	"pricesync/internal/httpx"
	"pricesync/internal/logging"
	"pricesync/internal/price"
	"pricesync/internal/rates"
)

type outcome struct {
	Provider  string `json:"provider"`
	LiveOnly  bool   `json:"live_only,omitempty"`
	Rate      string `json:"rate,omitempty"`
	RateDay   string `json:"rate_day,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	TookMS    int64  `json:"took_ms"`
}

type report struct {
	Date     string    `json:"date"`
	Pair     string    `json:"pair"`
	Outcomes []outcome `json:"outcomes"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ratedump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML config file")
	dateFlag := fs.String("date", "", "day to query, YYYY-MM-DD (default: today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	logger := logging.New(stderr, cfg.Logging)
	if err != nil {
		logger.Error("config", "error", err)
		return err
	}

	day := price.Today(time.Now(), cfg.Location())
	if *dateFlag != "" {
		if day, err = price.ParseDay(*dateFlag); err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
	}

	steps := app.Steps(cfg, httpx.New(cfg.Providers.Timeout), logger)
	rep := report{
		Date:     price.FormatDay(day),
		Pair:     app.Pair(cfg).Symbol(),
		Outcomes: query(ctx, steps, day, cfg.Providers.Timeout),
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// query asks every step concurrently. Outcomes keep the chain's order.
func query(ctx context.Context, steps []convert.Step, day time.Time, timeout time.Duration) []outcome {
	out := make([]outcome, len(steps))
	var g errgroup.Group
	g.SetLimit(4)
	for i, s := range steps {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			q, err := s.Provider.Rate(callCtx, day)
			out[i] = describe(s, q, err, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func describe(s convert.Step, q rates.Quote, err error, took time.Duration) outcome {
	o := outcome{Provider: s.Provider.Name(), LiveOnly: s.LiveOnly, TookMS: took.Milliseconds()}
	if err != nil {
		o.Error = err.Error()
		var se *httpx.StatusError
		if errors.As(err, &se) {
			o.Retryable = se.Retryable()
		}
		return o
	}
	o.Rate = q.Rate.String()
	if !q.Day.IsZero() {
		o.RateDay = price.FormatDay(q.Day)
	}
	return o
}
