// Package scheduler repeats a job on a fixed cadence during market hours.
//
// Ticks start Offset after the session open and repeat every Interval
// until the close, on weekdays only. Exchange holidays are not modelled;
// a run on a holiday simply finds no same-day expiry.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/contactkeval/delta-chain/internal/logger"
)

// Window is a daily trading session in a market time zone.
type Window struct {
	Location *time.Location
	Open     string // "HH:MM"
	Close    string // "HH:MM"
}

// Session returns the open and close instants on the given day.
func (w Window) Session(day time.Time) (time.Time, time.Time, error) {
	open, err := CombineDateTime(day, w.Open, w.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	closeAt, err := CombineDateTime(day, w.Close, w.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !closeAt.After(open) {
		return time.Time{}, time.Time{}, fmt.Errorf("session close %s is not after open %s", w.Close, w.Open)
	}
	return open, closeAt, nil
}

// IsOpen reports whether t falls on a weekday within [open, close).
func (w Window) IsOpen(t time.Time) (bool, error) {
	t = t.In(w.Location)
	if !isWeekday(t) {
		return false, nil
	}
	open, closeAt, err := w.Session(t)
	if err != nil {
		return false, err
	}
	return !t.Before(open) && t.Before(closeAt), nil
}

type Scheduler struct {
	window   Window
	interval time.Duration
	offset   time.Duration

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func New(window Window, interval, offset time.Duration) *Scheduler {
	return &Scheduler{
		window:   window,
		interval: interval,
		offset:   offset,
		now:      time.Now,
		after:    time.After,
	}
}

// NextTick returns the first tick strictly after t.
func (s *Scheduler) NextTick(t time.Time) (time.Time, error) {
	if s.interval <= 0 {
		return time.Time{}, fmt.Errorf("interval must be positive, got %v", s.interval)
	}
	local := t.In(s.window.Location)

	// a week always contains a weekday session
	for i := 0; i < 8; i++ {
		day := local.AddDate(0, 0, i)
		if !isWeekday(day) {
			continue
		}
		open, closeAt, err := s.window.Session(day)
		if err != nil {
			return time.Time{}, err
		}

		tick := open.Add(s.offset)
		if !tick.After(t) {
			steps := t.Sub(tick)/s.interval + 1
			tick = tick.Add(steps * s.interval)
		}
		if tick.Before(closeAt) {
			return tick, nil
		}
	}
	return time.Time{}, fmt.Errorf("no session found after %s", t.Format(time.RFC3339))
}

// Run waits for each tick and invokes job until ctx is cancelled.
// Ticks that fire outside the session are skipped. A failing job is
// logged and the loop carries on with the next tick.
func (s *Scheduler) Run(ctx context.Context, job func(context.Context) error) error {
	for {
		if ctx.Err() != nil {
			logger.Infof("scheduler stopped")
			return nil
		}

		next, err := s.NextTick(s.now())
		if err != nil {
			return err
		}
		logger.Infof("next run at %s", next.Format("2006-01-02 15:04:05 MST"))

		select {
		case <-ctx.Done():
			logger.Infof("scheduler stopped")
			return nil
		case <-s.after(next.Sub(s.now())):
		}

		// a late wake-up (host sleep, clock jump) can land after the close
		open, err := s.window.IsOpen(s.now())
		if err != nil {
			return err
		}
		if !open {
			logger.Warnf("woke at %s outside market hours, skipping run", s.now().Format(time.RFC3339))
			continue
		}

		if err := job(ctx); err != nil {
			logger.Errorf("scheduled run failed: %v", err)
		}
	}
}
