package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"pricesync/internal/price"
)

// Memory keeps records in process. It backs dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[time.Time]price.Record
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{records: make(map[time.Time]price.Record)}
}

// Seed loads existing records, e.g. a snapshot of the real store for a dry run.
func (m *Memory) Seed(recs []price.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		r.Date = price.Day(r.Date)
		m.records[r.Date] = cloneRecord(r)
	}
}

func (m *Memory) Insert(_ context.Context, rec price.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	day := price.Day(rec.Date)
	if _, ok := m.records[day]; ok {
		return false, nil
	}
	rec.Date = day
	m.records[day] = cloneRecord(rec)
	return true, nil
}

func (m *Memory) Exists(_ context.Context, day time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.records[price.Day(day)]
	return ok, nil
}

func (m *Memory) Read(_ context.Context, day time.Time) (price.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return price.Record{}, false, ErrClosed
	}
	r, ok := m.records[price.Day(day)]
	return cloneRecord(r), ok, nil
}

func (m *Memory) ReadRange(_ context.Context, start, end time.Time) ([]price.Record, error) {
	start, end = price.Day(start), price.Day(end)
	return m.collect(func(d time.Time) bool { return !d.Before(start) && !d.After(end) })
}

func (m *Memory) ReadAll(_ context.Context) ([]price.Record, error) {
	return m.collect(func(time.Time) bool { return true })
}

func (m *Memory) collect(keep func(time.Time) bool) ([]price.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return []price.Record{}, ErrClosed
	}
	out := []price.Record{}
	for d, r := range m.records {
		if keep(d) {
			out = append(out, cloneRecord(r))
		}
	}
	slices.SortFunc(out, func(a, b price.Record) int { return a.Date.Compare(b.Date) })
	return out, nil
}

func (m *Memory) Update(_ context.Context, day time.Time, f price.Fields) (bool, error) {
	if f.Empty() {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	day = price.Day(day)
	r, ok := m.records[day]
	if !ok {
		return false, nil
	}
	if f.Price != nil {
		r.Price = *f.Price
	}
	if f.Native != nil {
		r.Native = price.Ptr(*f.Native)
	}
	if f.FXRate != nil {
		r.FXRate = price.Ptr(*f.FXRate)
	}
	m.records[day] = r
	return true, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func cloneRecord(r price.Record) price.Record {
	if r.Native != nil {
		r.Native = price.Ptr(*r.Native)
	}
	if r.FXRate != nil {
		r.FXRate = price.Ptr(*r.FXRate)
	}
	return r
}
