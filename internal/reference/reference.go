// Package reference reads externally supplied daily tables: date to FX rate
// files used to backfill stored rates, and tab-separated OHLCV exports of the
// instrument itself.
package reference

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pricesync/internal/locale"
	"pricesync/internal/price"
)

// ErrEmpty is returned when a file yields no usable rows.
var ErrEmpty = errors.New("no usable rows")

// Table maps calendar days to rates.
type Table struct {
	rates map[time.Time]decimal.Decimal
	// Skipped counts data lines dropped as missing or malformed.
	Skipped int
}

// Rate returns the rate for day.
func (t Table) Rate(day time.Time) (decimal.Decimal, bool) {
	r, ok := t.rates[price.Day(day)]
	return r, ok
}

func (t Table) Len() int { return len(t.rates) }

// Days returns every day in the table, oldest first.
func (t Table) Days() []time.Time {
	out := make([]time.Time, 0, len(t.rates))
	for d := range t.rates {
		out = append(out, d)
	}
	slices.SortFunc(out, time.Time.Compare)
	return out
}

// Load reads a rate table from path. See Parse.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open reference table: %w", err)
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads "date<sep>rate" lines. The separator is a tab, semicolon or
// comma, taken from the first non-blank line. Dates are YYYY-MM-DD or
// dd.mm.yyyy; rates are plain ("1.0823") or locale ("1,0823"). A leading
// header, blank lines and missing values ("", ".", "N/A") are skipped. In a
// comma-separated file a line with more than two fields is malformed.
func Parse(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read reference table: %w", err)
	}

	sep := sniffSeparator(data)
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.Comment = '#'

	t := Table{rates: make(map[time.Time]decimal.Decimal)}
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read reference table: %w", err)
		}
		if blank(rec) {
			continue
		}
		header := first
		first = false

		if len(rec) < 2 {
			t.Skipped++
			continue
		}
		// An unquoted locale rate splits into extra fields.
		if sep == ',' && len(rec) > 2 {
			t.Skipped++
			continue
		}
		day, err := parseDay(rec[0])
		if err != nil {
			if !header {
				t.Skipped++
			}
			continue
		}
		if missing(rec[1]) {
			t.Skipped++
			continue
		}
		rate, err := parseRate(rec[1])
		if err != nil || !rate.IsPositive() {
			t.Skipped++
			continue
		}
		t.rates[day] = rate
	}
	if len(t.rates) == 0 {
		return t, ErrEmpty
	}
	return t, nil
}

// Bar is one line of a tab-separated daily export.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// LoadBars reads a tab-separated export from path. See ParseBars.
func LoadBars(path string) ([]Bar, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()
	bars, skipped, err := ParseBars(f)
	if err != nil {
		return nil, skipped, fmt.Errorf("%s: %w", path, err)
	}
	return bars, skipped, nil
}

// ParseBars reads "dd.mm.yyyy\topen\thigh\tlow\tclose\tvolume" lines with
// locale-formatted prices and an integer volume. Lines with a different
// field count or unparsable values are counted in skipped. Bars come back
// oldest first.
func ParseBars(r io.Reader) (bars []Bar, skipped int, err error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 6 {
			skipped++
			continue
		}
		b, err := parseBar(fields)
		if err != nil {
			skipped++
			continue
		}
		bars = append(bars, b)
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read bar file: %w", err)
	}
	if len(bars) == 0 {
		return nil, skipped, ErrEmpty
	}
	slices.SortStableFunc(bars, func(a, b Bar) int { return a.Date.Compare(b.Date) })
	return bars, skipped, nil
}

func parseBar(f []string) (Bar, error) {
	day, err := locale.ParseDate(f[0])
	if err != nil {
		return Bar{}, err
	}
	var nums [4]decimal.Decimal
	for i := range nums {
		if nums[i], err = locale.ParseDecimal(f[i+1]); err != nil {
			return Bar{}, err
		}
	}
	vol, err := strconv.ParseInt(strings.TrimSpace(f[5]), 10, 64)
	if err != nil {
		return Bar{}, fmt.Errorf("volume %q: %w", f[5], err)
	}
	return Bar{Date: day, Open: nums[0], High: nums[1], Low: nums[2], Close: nums[3], Volume: vol}, nil
}

// Points returns each bar's close as a native price point.
func Points(bars []Bar) []price.Point {
	out := make([]price.Point, 0, len(bars))
	for _, b := range bars {
		out = append(out, price.Point{Date: b.Date, Native: b.Close})
	}
	return out
}

func sniffSeparator(data []byte) rune {
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		switch {
		case bytes.ContainsRune(line, '\t'):
			return '\t'
		case bytes.ContainsRune(line, ';'):
			return ';'
		default:
			return ','
		}
	}
	return ','
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := price.ParseDay(s); err == nil {
		return d, nil
	}
	return locale.ParseDate(s)
}

// parseRate treats a comma as the decimal mark; anything else is plain.
func parseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		return locale.ParseDecimal(s)
	}
	return decimal.NewFromString(s)
}

func missing(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", ".", "N/A", "NA", "-":
		return true
	}
	return false
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
