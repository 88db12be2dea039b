package price_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricesync/internal/price"
)

func TestRawRowValue(t *testing.T) {
	t.Parallel()

	row := price.RawRow{{Header: "Datum", Value: "01.03.2024"}, {Header: "Schluss [EUR]", Value: "1.234,50"}}

	v, ok := row.Value("Schluss [EUR]")
	require.True(t, ok)
	require.Equal(t, "1.234,50", v)

	_, ok = row.Value("Volumen")
	require.False(t, ok)
}

func TestToday_UsesLocation(t *testing.T) {
	t.Parallel()

	// Arrange: 23:30 UTC is already the next day in Berlin
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Act + Assert
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), price.Today(now, time.UTC))
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), price.Today(now, berlin))
}

func TestFieldsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, price.Fields{}.Empty())
	require.False(t, price.Fields{FXRate: price.Ptr(decimal.RequireFromString("1.08"))}.Empty())
}

func TestParseDay(t *testing.T) {
	t.Parallel()

	d, err := price.ParseDay("2024-03-01")
	require.NoError(t, err)
	require.Equal(t, "2024-03-01", price.FormatDay(d))

	_, err = price.ParseDay("01.03.2024")
	require.Error(t, err)
}
