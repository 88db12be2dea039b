// Package locale parses numbers and dates printed in the German exchange
// format: "." groups thousands, "," separates decimals, dates are dd.mm.yyyy.
package locale

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pricesync/internal/price"
)

var (
	ErrMalformedNumber = errors.New("malformed number")
	ErrMalformedDate   = errors.New("malformed date")
)

// DateLayout is the day.month.year layout used by the source table.
const DateLayout = "02.01.2006"

// ParseDecimal turns "1.234,56" into 1234.56 exactly.
func ParseDecimal(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	return d, nil
}

// FormatDecimal renders d with "." grouping and "," decimals, keeping places
// fractional digits.
func FormatDecimal(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

// ParseDate parses "01.03.2024" into the calendar day 2024-03-01.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return price.Day(t), nil
}
