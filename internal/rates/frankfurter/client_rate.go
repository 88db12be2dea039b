package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pricesync/internal/httpx"
	"pricesync/internal/price"
	"pricesync/internal/rates"
)

// response is the body of GET /{date}.
//
//	{"amount":1.0,"base":"EUR","date":"2024-03-01","rates":{"USD":1.0834}}
type response struct {
	Amount json.Number            `json:"amount"`
	Base   string                 `json:"base"`
	Date   string                 `json:"date"`
	Rates  map[string]json.Number `json:"rates"`
}

// Rate returns the reference rate published for day. On weekends and
// holidays the API answers with the closest earlier business day; that rate
// is accepted and the quote's Day is the date it was published for.
func (c *Client) Rate(ctx context.Context, day time.Time) (rates.Quote, error) {
	query := maps.Clone(c.query)
	query.Set("from", c.pair.Base)
	query.Set("to", c.pair.Counter)

	url := fmt.Sprintf("%s/%s?%s", c.baseURL, price.FormatDay(day), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return rates.Quote{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return rates.Quote{}, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:

	case http.StatusNotFound:
		return rates.Quote{}, fmt.Errorf("%w: %s not published", rates.ErrNoRate, price.FormatDay(day))

	case http.StatusTooManyRequests:
		return rates.Quote{}, fmt.Errorf("rate limited")

	default:
		return rates.Quote{}, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body response
	if err := httpx.DecodeJSON(res.Body, &body); err != nil {
		return rates.Quote{}, err
	}

	raw, ok := body.Rates[c.pair.Counter]
	if !ok || raw == "" {
		return rates.Quote{}, fmt.Errorf("%w: %s missing for %s", rates.ErrNoRate, c.pair.Counter, price.FormatDay(day))
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil || !rate.IsPositive() {
		return rates.Quote{}, fmt.Errorf("%w: bad rate %q", rates.ErrNoRate, raw)
	}

	published := price.Day(day)
	if d, err := price.ParseDay(body.Date); err == nil {
		published = d
	}

	return rates.Quote{
		Day:        published,
		Base:       c.pair.Base,
		Counter:    c.pair.Counter,
		Rate:       rate,
		Source:     c.name,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
