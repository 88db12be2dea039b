// Package rates defines the exchange-rate provider contract shared by the
// concrete providers and their decorators.
package rates

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoRate means the provider answered but had no rate for the day.
	ErrNoRate = errors.New("no rate in response")
	// ErrMissingCredential means the provider needs a key that is not configured.
	ErrMissingCredential = errors.New("missing credential")
)

// Quote is one base->counter rate as reported by a provider. Day is the date
// the rate was published for, which can be earlier than the one requested.
type Quote struct {
	Day        time.Time       `json:"day"`
	Base       string          `json:"base"`
	Counter    string          `json:"counter"`
	Rate       decimal.Decimal `json:"rate"`
	Source     string          `json:"source"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Provider returns the base->counter rate for a calendar day.
type Provider interface {
	Name() string
	Rate(ctx context.Context, day time.Time) (Quote, error)
}

// Pair is the currency pair a provider is configured for.
type Pair struct {
	Base    string
	Counter string
}

// DefaultPair is EUR->USD.
var DefaultPair = Pair{Base: "EUR", Counter: "USD"}

func (p Pair) OrDefault() Pair {
	if p.Base == "" || p.Counter == "" {
		return DefaultPair
	}
	return p
}

// Symbol is the concatenated pair, e.g. EURUSD.
func (p Pair) Symbol() string { return p.Base + p.Counter }
