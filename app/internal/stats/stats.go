package stats

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"pingit/app/internal/models"
)

// Engine owns the probe log and the window aggregates derived from it.
//
// There is a single writer at a time (Record/Restore hold mu) and any number
// of readers. Each write publishes a new State; readers only ever load the
// current pointer, so they never see a log that was appended but not yet
// pruned, or aggregates computed from a half-updated log.
type Engine struct {
	clock clock.Clock

	mu  sync.Mutex
	log []models.ProbeRecord // writer-owned; published States alias it read-only

	state atomic.Pointer[State]
}

// NewEngine creates an empty engine
func NewEngine(clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	e := &Engine{
		clock: clk,
		log:   make([]models.ProbeRecord, 0, 1024),
	}
	e.state.Store(&State{
		History:   e.log[:0:0],
		Failed:    []models.ProbeRecord{},
		Windows:   ComputeWindows(nil, clk.Now()),
		UpdatedAt: clk.Now(),
	})
	return e
}

// Restore seeds the engine from persisted state. When summary is nil the
// windows are recomputed from history; otherwise the persisted aggregates
// are published as-is until the next Record.
func (e *Engine) Restore(history []models.ProbeRecord, summary models.Summary) *State {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.log = Prune(slices.Clone(history), now.Add(-Retention).UnixMilli())
	if e.log == nil {
		e.log = make([]models.ProbeRecord, 0, 1024)
	}

	windows := ComputeWindows(e.log, now)
	if summary != nil {
		for name, agg := range summary {
			if _, ok := LookupWindow(name); ok {
				windows[name] = agg
			}
		}
	}
	return e.publish(windows, now)
}

// Record appends one probe, prunes expired entries, recomputes every window
// and publishes the result. It returns the published state for persistence.
func (e *Engine) Record(rec models.ProbeRecord) *State {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.log = append(e.log, rec)
	e.log = Prune(e.log, now.Add(-Retention).UnixMilli())
	return e.publish(ComputeWindows(e.log, now), now)
}

// publish must be called with mu held. Appends only ever write past the
// end of every previously published History, so the aliasing is safe.
func (e *Engine) publish(windows models.Summary, now time.Time) *State {
	history := e.log[:len(e.log):len(e.log)]
	s := &State{
		History:   history,
		Failed:    FailedOnly(history),
		Windows:   windows,
		UpdatedAt: now,
	}
	e.state.Store(s)
	return s
}

// State returns the current published state
func (e *Engine) State() *State {
	return e.state.Load()
}

// Window returns the view of a named window
func (e *Engine) Window(name string) (models.WindowView, bool) {
	if _, ok := LookupWindow(name); !ok {
		return models.WindowView{}, false
	}
	return View(e.State().Window(name)), true
}

// History returns the ordered probe log. Callers must not modify it.
func (e *Engine) History() []models.ProbeRecord {
	return e.State().History
}

// Failed returns the failed probes in order. Callers must not modify it.
func (e *Engine) Failed() []models.ProbeRecord {
	return e.State().Failed
}
