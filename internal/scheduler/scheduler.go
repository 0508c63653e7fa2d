// Package scheduler runs the periodic overdue-reservation sweep.  The loop
// is independent of request load and survives any downstream failure: a
// sweep that errors is logged and simply retried on the next tick.
package scheduler

import (
    "context"
    "log"
    "time"
)

// Sweeper is the slice of the lifecycle engine the scheduler needs.
type Sweeper interface {
    ExpireOverdue(ctx context.Context) (processed, cancelled int, err error)
}

// Scheduler triggers the overdue sweep at a fixed interval.
type Scheduler struct {
    sweeper  Sweeper
    interval time.Duration
    timeout  time.Duration
}

// New returns a Scheduler.  interval is how often the sweep fires; timeout
// bounds a single sweep so a hung store cannot wedge the loop.
func New(sweeper Sweeper, interval, timeout time.Duration) *Scheduler {
    if interval <= 0 {
        interval = 10 * time.Minute
    }
    if timeout <= 0 {
        timeout = time.Minute
    }
    return &Scheduler{sweeper: sweeper, interval: interval, timeout: timeout}
}

// Run blocks until ctx is cancelled, invoking the sweep once per interval.
// The loop itself never fails; all errors end up in the log.
func (s *Scheduler) Run(ctx context.Context) {
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()

    log.Printf("scheduler: overdue sweep every %s", s.interval)
    for {
        select {
        case <-ctx.Done():
            log.Printf("scheduler: stopped")
            return
        case <-ticker.C:
            s.sweep(ctx)
        }
    }
}

func (s *Scheduler) sweep(ctx context.Context) {
    cctx, cancel := context.WithTimeout(ctx, s.timeout)
    defer cancel()

    log.Printf("scheduler: starting overdue cancellation check")
    processed, cancelled, err := s.sweeper.ExpireOverdue(cctx)
    if err != nil {
        // transient store failure; the next tick retries
        log.Printf("scheduler: overdue cancellation failed: %v", err)
        return
    }
    log.Printf("scheduler: processed %d reservations, cancelled %d", processed, cancelled)
}
