// Package series shapes stored records for display: chronological ordering,
// chart arrays and a window summary.
package series

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"pricesync/internal/price"
)

var hundred = decimal.NewFromInt(100)

// Chart holds parallel arrays, one entry per day. EUR entries are empty for
// days stored without a native price.
type Chart struct {
	Labels []string `json:"labels"`
	USD    []string `json:"usd"`
	EUR    []string `json:"eur"`
}

// Summary describes a window of records.
type Summary struct {
	From               string `json:"from,omitempty"`
	To                 string `json:"to,omitempty"`
	Days               int    `json:"days"`
	MostRecentDate     string `json:"most_recent_date,omitempty"`
	MostRecentPriceUSD string `json:"most_recent_price_usd,omitempty"`
	MostRecentPriceEUR string `json:"most_recent_price_eur,omitempty"`
	// Performance is the percent change from the first to the last day,
	// rounded to two places. Empty when it cannot be computed.
	PerformanceUSD string `json:"performance_usd_pct,omitempty"`
	PerformanceEUR string `json:"performance_eur_pct,omitempty"`
}

// Chronological returns recs sorted oldest first with one record per day;
// for duplicate days the later input wins.
func Chronological(recs []price.Record) []price.Record {
	byDay := make(map[time.Time]price.Record, len(recs))
	for _, r := range recs {
		r.Date = price.Day(r.Date)
		byDay[r.Date] = r
	}
	out := make([]price.Record, 0, len(byDay))
	for _, r := range byDay {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b price.Record) int { return a.Date.Compare(b.Date) })
	return out
}

// ToChart renders recs, which must already be chronological.
func ToChart(recs []price.Record) Chart {
	c := Chart{
		Labels: make([]string, 0, len(recs)),
		USD:    make([]string, 0, len(recs)),
		EUR:    make([]string, 0, len(recs)),
	}
	for _, r := range recs {
		c.Labels = append(c.Labels, price.FormatDay(r.Date))
		c.USD = append(c.USD, r.Price.StringFixed(2))
		eur := ""
		if r.Native != nil {
			eur = r.Native.StringFixed(2)
		}
		c.EUR = append(c.EUR, eur)
	}
	return c
}

// Summarize describes recs, which must already be chronological.
func Summarize(recs []price.Record) Summary {
	s := Summary{Days: len(recs)}
	if len(recs) == 0 {
		return s
	}
	first, last := recs[0], recs[len(recs)-1]
	s.From = price.FormatDay(first.Date)
	s.To = price.FormatDay(last.Date)
	s.MostRecentDate = s.To
	s.MostRecentPriceUSD = last.Price.StringFixed(2)
	if last.Native != nil {
		s.MostRecentPriceEUR = last.Native.StringFixed(2)
	}

	s.PerformanceUSD = change(&first.Price, &last.Price)

	// EUR performance uses the first and last days that carry a native price.
	var firstEUR, lastEUR *decimal.Decimal
	for _, r := range recs {
		if r.Native == nil {
			continue
		}
		if firstEUR == nil {
			firstEUR = r.Native
		}
		lastEUR = r.Native
	}
	s.PerformanceEUR = change(firstEUR, lastEUR)
	return s
}

func change(from, to *decimal.Decimal) string {
	if from == nil || to == nil || from.IsZero() {
		return ""
	}
	return to.Sub(*from).Div(*from).Mul(hundred).StringFixed(2)
}
