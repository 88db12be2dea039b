// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled run. It receives the scheduler's context.
type Job func(ctx context.Context)

// Scheduler wraps a seconds-resolution cron. A job still running when its
// next tick arrives is skipped, so runs never overlap.
type Scheduler struct {
	Cron   *cron.Cron
	Logger *slog.Logger
	ctx    context.Context
	loc    *time.Location
}

// New creates a Scheduler evaluating specs in loc.
func New(ctx context.Context, loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Logger: logger,
		ctx:    ctx,
		loc:    loc,
	}
}

// Register adds job under spec (six fields, seconds first).
func (s *Scheduler) Register(name, spec string, job Job) (cron.EntryID, error) {
	id, err := s.Cron.AddFunc(spec, func() {
		start := time.Now()
		s.Logger.Info("scheduled run starting", "job", name)
		job(s.ctx)
		s.Logger.Info("scheduled run done", "job", name, "took", time.Since(start))
	})
	if err != nil {
		return 0, fmt.Errorf("register %s (%q): %w", name, spec, err)
	}
	return id, nil
}

// Next returns when entry id fires next, counting from now.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	e := s.Cron.Entry(id)
	if !e.Valid() {
		return time.Time{}
	}
	return e.Schedule.Next(time.Now().In(s.loc))
}

// Run starts the cron and blocks until ctx is done, then waits for a running
// job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.Cron.Start()
	s.Logger.Info("scheduler started", "entries", len(s.Cron.Entries()))
	<-ctx.Done()
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}
