// Package monitor drives the probe and bandwidth schedules.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"pingit/app/internal/alerts"
	"pingit/app/internal/probe"
	"pingit/app/internal/stats"
	"pingit/app/internal/storage"
)

// ProbeLoop probes the target once per interval. A tick runs to completion
// before the next one is taken from the ticker, so ticks never overlap; a
// slow tick delays the next one and the ticker drops the missed fire.
type ProbeLoop struct {
	Target   string
	Interval time.Duration
	Prober   probe.Prober
	Engine   *stats.Engine
	Store    storage.Store
	Tracker  *FailureTracker
	Alerts   *alerts.Manager // optional
	Clock    clock.Clock
}

// Run ticks until ctx is cancelled. The first probe fires one interval
// after start.
func (l *ProbeLoop) Run(ctx context.Context) error {
	clk := l.Clock
	if clk == nil {
		clk = clock.New()
	}
	if l.Tracker == nil {
		l.Tracker = NewFailureTracker()
	}
	l.Tracker.Reset(l.Target)

	ticker := clk.Ticker(l.Interval)
	defer ticker.Stop()

	log.Printf("probe loop started target=%s interval=%v", l.Target, l.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("probe loop stopped target=%s", l.Target)
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick probes once, folds the record into the engine and persists the
// result. Probe and persistence failures are logged, never returned.
// Cancelling ctx does not interrupt a probe in flight; it finishes within
// the prober's own timeout and is recorded normally.
func (l *ProbeLoop) Tick(ctx context.Context) *stats.State {
	rec := l.Prober.Probe(context.WithoutCancel(ctx), l.Target)
	state := l.Engine.Record(rec)

	if l.Store != nil {
		if err := storage.Persist(l.Store, state); err != nil {
			log.Printf("persist error target=%s err=%v", l.Target, err)
		}
	}

	if l.Tracker != nil {
		failures := l.Tracker.Update(l.Target, rec.Success)
		if !rec.Success {
			log.Printf("probe failed target=%s consecutive=%d", l.Target, failures)
		}
		if l.Alerts != nil {
			l.Alerts.CheckAndSendAlerts(l.Target, rec.Success, failures)
		}
	}
	return state
}
