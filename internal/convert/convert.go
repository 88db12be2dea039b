// Package convert prices native amounts in the target currency by asking rate
// providers in a fixed order until one answers.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pricesync/internal/price"
	"pricesync/internal/rates"
)

//go:generate mockgen -package=convert_test -destination=mock_provider_test.go pricesync/internal/rates Provider

// ErrUnavailable means no provider produced a rate for the day. Nothing
// should be stored for that day.
var ErrUnavailable = errors.New("conversion unavailable")

// DefaultTimeout bounds a single provider call when Chain.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Step is one provider in the chain. A LiveOnly step reports the current
// rate and is consulted only when the requested day is today.
type Step struct {
	Provider rates.Provider
	LiveOnly bool
}

// Attempt records what happened at one step.
type Attempt struct {
	Provider string
	Skipped  bool
	Err      error
	// RateDay is the publication date of the quote a successful step returned.
	RateDay time.Time
}

// Trace lists the steps consulted for one conversion, in order.
type Trace []Attempt

// Chain converts through Steps in order.
type Chain struct {
	Steps    []Step
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

func (c *Chain) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Chain) today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return price.Today(now(), c.Location)
}

// Rate returns the first usable quote for day.
func (c *Chain) Rate(ctx context.Context, day time.Time) (rates.Quote, Trace, error) {
	day = price.Day(day)
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	isToday := day.Equal(c.today())

	var trace Trace
	for _, s := range c.Steps {
		name := s.Provider.Name()
		if s.LiveOnly && !isToday {
			trace = append(trace, Attempt{Provider: name, Skipped: true})
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		q, err := s.Provider.Rate(callCtx, day)
		cancel()
		if err == nil && !q.Rate.IsPositive() {
			err = fmt.Errorf("%w: non-positive rate %s", rates.ErrNoRate, q.Rate)
		}
		att := Attempt{Provider: name, Err: err}
		if err == nil {
			att.RateDay = rateDay(q, day)
		}
		trace = append(trace, att)
		if err != nil {
			c.logger().Warn("rate provider failed, falling back",
				"provider", name,
				"date", price.FormatDay(day),
				"error", err,
			)
			if ctx.Err() != nil {
				return rates.Quote{}, trace, fmt.Errorf("%w: %s: %v", ErrUnavailable, price.FormatDay(day), ctx.Err())
			}
			continue
		}
		if q.Source == "" {
			q.Source = name
		}
		q.Day = att.RateDay
		if !q.Day.Equal(day) {
			c.logger().Info("using rate published for another day",
				"provider", name,
				"date", price.FormatDay(day),
				"rate_day", price.FormatDay(q.Day),
			)
		}
		return q, trace, nil
	}
	return rates.Quote{}, trace, fmt.Errorf("%w: %s", ErrUnavailable, price.FormatDay(day))
}

// Convert prices native on day. Target is exactly native * rate.
func (c *Chain) Convert(ctx context.Context, day time.Time, native decimal.Decimal) (price.Conversion, Trace, error) {
	q, trace, err := c.Rate(ctx, day)
	if err != nil {
		return price.Conversion{}, trace, err
	}
	return price.Conversion{
		Date:    price.Day(day),
		Native:  native,
		Target:  native.Mul(q.Rate),
		Rate:    q.Rate,
		RateDay: q.Day,
		Source:  q.Source,
	}, trace, nil
}

// rateDay is the quote's publication day, or day when the provider left it
// unset.
func rateDay(q rates.Quote, day time.Time) time.Time {
	if q.Day.IsZero() {
		return day
	}
	return price.Day(q.Day)
}
