// Package currencylayer reads EUR->USD quotes from the currencylayer API.
// One API key serves two providers: Historical for a given day and Live for
// the current rate.
package currencylayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pricesync/internal/httpx"
	"pricesync/internal/price"
	"pricesync/internal/rates"
)

const DefaultEndpoint = "https://api.currencylayer.com"

type Config struct {
	Name     string
	Endpoint string
	APIKey   string
	Pair     rates.Pair
}

// apiResponse covers both /live and /historical.
//
//	{"success":true,"historical":true,"date":"2024-03-01","source":"EUR","quotes":{"EURUSD":1.0834}}
//	{"success":false,"error":{"code":101,"info":"You have not supplied an API Access Key."}}
type apiResponse struct {
	Success bool                   `json:"success"`
	Date    string                 `json:"date"`
	Source  string                 `json:"source"`
	Quotes  map[string]json.Number `json:"quotes"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}

type client struct {
	cfg    Config
	client *httpx.Client
}

func newClient(cfg Config, hc *httpx.Client) client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	cfg.Pair = cfg.Pair.OrDefault()
	return client{cfg: cfg, client: hc}
}

func (c client) get(ctx context.Context, path string, extra url.Values) (decimal.Decimal, error) {
	if c.cfg.APIKey == "" {
		return decimal.Zero, fmt.Errorf("%s: %w", c.cfg.Name, rates.ErrMissingCredential)
	}

	q := url.Values{}
	q.Set("access_key", c.cfg.APIKey)
	q.Set("source", c.cfg.Pair.Base)
	q.Set("currencies", c.cfg.Pair.Counter)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	var api apiResponse
	if err := c.client.GetJSON(ctx, c.cfg.Endpoint+path+"?"+q.Encode(), &api); err != nil {
		return decimal.Zero, err
	}
	if !api.Success {
		if api.Error != nil {
			return decimal.Zero, fmt.Errorf("provider error: code=%d msg=%q", api.Error.Code, api.Error.Info)
		}
		return decimal.Zero, fmt.Errorf("provider error: unknown")
	}

	raw, ok := api.Quotes[c.cfg.Pair.Symbol()]
	if !ok || raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %s missing", rates.ErrNoRate, c.cfg.Pair.Symbol())
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: bad rate %q", rates.ErrNoRate, raw)
	}
	return rate, nil
}

func (c client) quote(day time.Time, rate decimal.Decimal) rates.Quote {
	return rates.Quote{
		Day:        price.Day(day),
		Base:       c.cfg.Pair.Base,
		Counter:    c.cfg.Pair.Counter,
		Rate:       rate,
		Source:     c.cfg.Name,
		ReceivedAt: time.Now().UTC(),
	}
}

// Historical serves GET /historical?date=YYYY-MM-DD.
type Historical struct{ c client }

func NewHistorical(cfg Config, hc *httpx.Client) *Historical {
	if cfg.Name == "" {
		cfg.Name = "currencylayer-historical"
	}
	return &Historical{c: newClient(cfg, hc)}
}

func (h *Historical) Name() string { return h.c.cfg.Name }

func (h *Historical) Rate(ctx context.Context, day time.Time) (rates.Quote, error) {
	rate, err := h.c.get(ctx, "/historical", url.Values{"date": {price.FormatDay(day)}})
	if err != nil {
		return rates.Quote{}, err
	}
	return h.c.quote(day, rate), nil
}

// Live serves GET /live. It ignores the day it is asked for; callers decide
// whether a live rate may stand in for that day.
type Live struct{ c client }

func NewLive(cfg Config, hc *httpx.Client) *Live {
	if cfg.Name == "" {
		cfg.Name = "currencylayer-live"
	}
	return &Live{c: newClient(cfg, hc)}
}

func (l *Live) Name() string { return l.c.cfg.Name }

func (l *Live) Rate(ctx context.Context, day time.Time) (rates.Quote, error) {
	rate, err := l.c.get(ctx, "/live", nil)
	if err != nil {
		return rates.Quote{}, err
	}
	return l.c.quote(day, rate), nil
}
