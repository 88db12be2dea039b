package pipeline

import (
	"fmt"
	"time"

	"pricesync/internal/locale"
	"pricesync/internal/price"
)

// Columns names the table headers holding the day and the native close.
type Columns struct {
	Date  string
	Price string
}

// DefaultColumns match the exchange's German history table.
var DefaultColumns = Columns{Date: "Datum", Price: "Schluss [EUR]"}

// ParseRows turns raw rows into points. Rows missing a column or holding an
// unparsable date or number are returned as malformed items instead.
func ParseRows(rows []price.RawRow, cols Columns) ([]price.Point, []Item) {
	var (
		points []price.Point
		bad    []Item
	)
	for i, row := range rows {
		dateText, ok := row.Value(cols.Date)
		if !ok {
			bad = append(bad, itemFor(time.Time{}, StatusMalformed, "", fmt.Errorf("row %d: no %q column", i, cols.Date)))
			continue
		}
		day, err := locale.ParseDate(dateText)
		if err != nil {
			bad = append(bad, itemFor(time.Time{}, StatusMalformed, "", fmt.Errorf("row %d: %w", i, err)))
			continue
		}
		priceText, ok := row.Value(cols.Price)
		if !ok {
			bad = append(bad, itemFor(day, StatusMalformed, "", fmt.Errorf("row %d: no %q column", i, cols.Price)))
			continue
		}
		native, err := locale.ParseDecimal(priceText)
		if err != nil {
			bad = append(bad, itemFor(day, StatusMalformed, "", fmt.Errorf("row %d: %w", i, err)))
			continue
		}
		points = append(points, price.Point{Date: day, Native: native})
	}
	return points, bad
}
