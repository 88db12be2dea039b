package price

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical text form of a calendar day.
const DateLayout = "2006-01-02"

// Cell is one header/value pair of an extracted table row.
type Cell struct {
	Header string `json:"h"`
	Value  string `json:"v"`
}

// RawRow keeps the page's column order, which a map would lose.
type RawRow []Cell

// Value returns the cell under header and whether it was present.
func (r RawRow) Value(header string) (string, bool) {
	for _, c := range r {
		if c.Header == header {
			return c.Value, true
		}
	}
	return "", false
}

// Point is a parsed (day, native price) pair.
type Point struct {
	Date   time.Time
	Native decimal.Decimal
}

// Conversion is a Point priced in the target currency.
// Target is always Native multiplied by Rate, unrounded.
type Conversion struct {
	Date   time.Time
	Native decimal.Decimal
	Target decimal.Decimal
	Rate   decimal.Decimal
	// RateDay is the date Rate was published for; it can precede Date.
	RateDay time.Time
	Source  string
}

// Record is one stored row, unique by Date.
type Record struct {
	Date   time.Time        `json:"date"`
	Price  decimal.Decimal  `json:"price"`
	Native *decimal.Decimal `json:"price_native,omitempty"`
	FXRate *decimal.Decimal `json:"fx_rate,omitempty"`
}

// Fields selects the columns an update touches. Nil fields are left alone.
type Fields struct {
	Price  *decimal.Decimal
	Native *decimal.Decimal
	FXRate *decimal.Decimal
}

// Empty reports whether the update would change nothing.
func (f Fields) Empty() bool {
	return f.Price == nil && f.Native == nil && f.FXRate == nil
}

// Day truncates t to midnight UTC of its calendar date in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day as seen from loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string { return t.Format(DateLayout) }

// ParseDay parses YYYY-MM-DD into a Day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// Ptr returns a pointer to d.
func Ptr(d decimal.Decimal) *decimal.Decimal { return &d }
