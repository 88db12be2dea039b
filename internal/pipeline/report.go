package pipeline

import (
	"log/slog"
	"time"

	"pricesync/internal/price"
)

// Status is the outcome for one day of a run.
type Status string

const (
	StatusInserted    Status = "inserted"
	StatusExists      Status = "exists"
	StatusUpdated     Status = "updated"
	StatusUnavailable Status = "unavailable"
	StatusMalformed   Status = "malformed"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
	StatusMissing     Status = "missing"
)

// Item is one day's outcome. Date is zero for rows whose date did not parse.
type Item struct {
	Date   time.Time `json:"date"`
	Status Status    `json:"status"`
	Source string    `json:"source,omitempty"`
	// RateDay is set when the rate used was published for another day.
	RateDay time.Time `json:"rate_day,omitzero"`
	Err     error     `json:"-"`
}

// Report summarises one orchestrator run.
type Report struct {
	Operation string
	RunID     string
	Started   time.Time
	Finished  time.Time
	// RowSource is "cache", "extract", "file" or "store".
	RowSource string
	// ExtractErr is set when extraction failed after all retries; the run
	// then continues with no rows.
	ExtractErr error
	// Interrupted is the context error when the run stopped early.
	Interrupted error
	Items       []Item
	Counts      map[Status]int
}

func (r *Report) add(it Item) {
	if r.Counts == nil {
		r.Counts = make(map[Status]int)
	}
	r.Items = append(r.Items, it)
	r.Counts[it.Status]++
}

// Count returns how many items ended with s.
func (r *Report) Count(s Status) int { return r.Counts[s] }

// LogValue lets a Report be logged as one structured attribute group.
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("operation", r.Operation),
		slog.String("run_id", r.RunID),
		slog.Duration("took", r.Finished.Sub(r.Started)),
		slog.Int("items", len(r.Items)),
	}
	if r.RowSource != "" {
		attrs = append(attrs, slog.String("rows_from", r.RowSource))
	}
	for _, s := range []Status{StatusInserted, StatusExists, StatusUpdated, StatusUnavailable, StatusMalformed, StatusFailed, StatusSkipped, StatusMissing} {
		if n := r.Counts[s]; n > 0 {
			attrs = append(attrs, slog.Int(string(s), n))
		}
	}
	if r.ExtractErr != nil {
		attrs = append(attrs, slog.String("extract_error", r.ExtractErr.Error()))
	}
	if r.Interrupted != nil {
		attrs = append(attrs, slog.String("interrupted", r.Interrupted.Error()))
	}
	return slog.GroupValue(attrs...)
}

func itemFor(day time.Time, s Status, source string, err error) Item {
	if !day.IsZero() {
		day = price.Day(day)
	}
	return Item{Date: day, Status: s, Source: source, Err: err}
}

// withRateDay records conv's publication day on it when it differs from the
// item's day.
func withRateDay(it Item, conv price.Conversion) Item {
	if !conv.RateDay.IsZero() && !conv.RateDay.Equal(it.Date) {
		it.RateDay = conv.RateDay
	}
	return it
}
