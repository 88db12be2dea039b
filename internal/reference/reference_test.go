package reference_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricesync/internal/price"
	"pricesync/internal/reference"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := price.ParseDay(s)
	require.NoError(t, err)
	return d
}

func TestParse_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantLen int
		day     string
		rate    string
		skipped int
	}{
		{
			name:    "csv with header and missing value",
			input:   "DATE,DEXUSEU\n2024-03-01,1.0823\n2024-03-04,.\n2024-03-05,1.0851\n",
			wantLen: 2,
			day:     "2024-03-01",
			rate:    "1.0823",
			skipped: 1,
		},
		{
			name:    "tab separated locale",
			input:   "Datum\tKurs\n01.03.2024\t1,0823\n04.03.2024\tN/A\n",
			wantLen: 1,
			day:     "2024-03-01",
			rate:    "1.0823",
			skipped: 1,
		},
		{
			name:    "semicolon with quoted locale rate",
			input:   "2024-03-01;\"1,0823\"\n\n2024-03-05;1,09\n",
			wantLen: 2,
			day:     "2024-03-05",
			rate:    "1.09",
		},
		{
			name:    "comma with quoted locale rate",
			input:   "date,rate\n2024-03-01,\"1,0823\"\n",
			wantLen: 1,
			day:     "2024-03-01",
			rate:    "1.0823",
		},
		{
			name:    "garbage lines after header are counted",
			input:   "date,rate\nnot-a-date,1.1\n2024-03-01,-1\n2024-03-02,abc\n2024-03-03,1.2\n",
			wantLen: 1,
			day:     "2024-03-03",
			rate:    "1.2",
			skipped: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// Act
			got, err := reference.Parse(strings.NewReader(tt.input))

			// Assert
			require.NoError(t, err)
			require.Equal(t, tt.wantLen, got.Len())
			require.Equal(t, tt.skipped, got.Skipped)
			rate, ok := got.Rate(mustDay(t, tt.day))
			require.True(t, ok)
			require.True(t, rate.Equal(decimal.RequireFromString(tt.rate)), rate.String())
		})
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	_, err := reference.Parse(strings.NewReader("DATE,DEXUSEU\n2024-03-01,.\n"))
	require.ErrorIs(t, err, reference.ErrEmpty)
}

func TestParse_CommaFileWithUnquotedLocaleRate(t *testing.T) {
	t.Parallel()
	// Arrange
	input := "date,rate\n01.03.2024,1,0823\n2024-03-04,1.09\n"

	// Act
	tbl, err := reference.Parse(strings.NewReader(input))

	// Assert
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, 1, tbl.Skipped)
	_, ok := tbl.Rate(mustDay(t, "2024-03-01"))
	require.False(t, ok, "a split locale rate must not be stored as its integer part")
	rate, ok := tbl.Rate(mustDay(t, "2024-03-04"))
	require.True(t, ok)
	require.True(t, rate.Equal(decimal.RequireFromString("1.09")))
}

func TestParse_OnlySplitLocaleRatesIsEmpty(t *testing.T) {
	t.Parallel()

	tbl, err := reference.Parse(strings.NewReader("01.03.2024,1,0823\n04.03.2024,1,09\n"))

	require.ErrorIs(t, err, reference.ErrEmpty)
	require.Equal(t, 2, tbl.Skipped)
}

func TestTable_DaysSorted(t *testing.T) {
	t.Parallel()
	tbl, err := reference.Parse(strings.NewReader("2024-03-05,1.1\n2024-03-01,1.2\n2024-03-04,1.3\n"))
	require.NoError(t, err)

	days := tbl.Days()

	require.Len(t, days, 3)
	require.Equal(t, "2024-03-01", price.FormatDay(days[0]))
	require.Equal(t, "2024-03-05", price.FormatDay(days[2]))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := reference.Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rates.csv")
	require.NoError(t, os.WriteFile(path, []byte("DATE,DEXUSEU\n2024-03-01,1.0823\n"), 0o600))

	tbl, err := reference.Load(path)

	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
}

const stockData = "05.03.2024\t1.240,00\t1.250,50\t1.230,00\t1.245,75\t1200\n" +
	"01.03.2024\t1.230,00\t1.236,00\t1.228,00\t1.234,50\t900\n" +
	"\n" +
	"04.03.2024\t1.234,50\t1.240,00\n" +
	"02.03.2024\tx\t1\t1\t1\t1\n" +
	"03.03.2024\t1,00\t1,00\t1,00\t1,00\t1.5\n"

func TestParseBars(t *testing.T) {
	t.Parallel()
	// Act
	bars, skipped, err := reference.ParseBars(strings.NewReader(stockData))

	// Assert
	require.NoError(t, err)
	require.Equal(t, 3, skipped)
	require.Len(t, bars, 2)
	require.Equal(t, "2024-03-01", price.FormatDay(bars[0].Date))
	require.True(t, bars[0].Close.Equal(decimal.RequireFromString("1234.50")))
	require.Equal(t, int64(900), bars[0].Volume)
	require.True(t, bars[1].High.Equal(decimal.RequireFromString("1250.5")))

	points := reference.Points(bars)
	require.Len(t, points, 2)
	require.True(t, points[1].Native.Equal(decimal.RequireFromString("1245.75")))
}

func TestParseBars_NothingUsable(t *testing.T) {
	t.Parallel()
	_, skipped, err := reference.ParseBars(strings.NewReader("a\tb\n"))
	require.ErrorIs(t, err, reference.ErrEmpty)
	require.Equal(t, 1, skipped)
}
