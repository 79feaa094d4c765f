// Package sweep reclaims orphaned held entities: world objects that
// visually represent an item but whose owning item was consumed, dropped,
// or merged away. One pass scans the live population, expands nested item
// contents, resolves which held entities are still claimed, and destroys
// the rest. Work is time-sliced over the host's ticks so the simulation
// thread never stalls, and guarded so at most one pass runs at a time.
package sweep

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/pkg/task"
	"github.com/worldsweep/extension/pkg/world"
)

// ErrPassRunning is returned by Request while a pass is in flight.
var ErrPassRunning = errors.New("cleanup pass already running")

// PassTaskName is the runner registration name for the cleanup pass.
// Replace semantics on this name are what keep passes from queueing up.
const PassTaskName = "sweep:pass"

const defaultBudget = 4 * time.Millisecond

// ReportSink receives the report of every finished pass. Submit is called
// on the host tick and must not block.
type ReportSink interface {
	Submit(*Report)
}

// Config carries the tunables the core consumes but does not own.
type Config struct {
	// Budget is the soft time budget for one reclaim batch. Once exceeded
	// the destruction loop yields until the next tick. Non-positive means
	// the default.
	Budget time.Duration
}

// Dependencies holds everything a Sweeper needs from its host environment.
// Construction-time injection; the sweeper keeps no other global state.
type Dependencies struct {
	Population world.Population
	Runner     *task.Runner
	Logger     zerolog.Logger
	// Reports is optional; nil disables fan-out (logging still happens).
	Reports ReportSink
	Config  Config
}

// Sweeper owns the single-flight guard and drives passes through the task
// runner. Request, Shutdown and the query methods may be called from any
// goroutine; pass steps themselves only ever execute inside Runner.Tick.
type Sweeper struct {
	pop     world.Population
	runner  *task.Runner
	log     zerolog.Logger
	reports ReportSink
	budget  atomic.Int64

	running    atomic.Bool
	lastReport atomic.Pointer[Report]

	totalPasses    atomic.Uint64
	totalCompleted atomic.Uint64
	totalAborted   atomic.Uint64
	totalRejected  atomic.Uint64
	totalRemoved   atomic.Uint64

	metrics *otelMetrics
}

// Totals are cumulative counters across the sweeper's lifetime.
type Totals struct {
	Passes    uint64 `json:"passes"`
	Completed uint64 `json:"completed"`
	Aborted   uint64 `json:"aborted"`
	Rejected  uint64 `json:"rejected"`
	Removed   uint64 `json:"removed"`
}

// NewSweeper wires a sweeper to its host handles. The returned sweeper is
// idle; nothing runs until Request.
func NewSweeper(deps Dependencies) (*Sweeper, error) {
	s := &Sweeper{
		pop:     deps.Population,
		runner:  deps.Runner,
		log:     deps.Logger.With().Str("component", "sweep").Logger(),
		reports: deps.Reports,
	}
	s.SetBudget(deps.Config.Budget)

	m, err := newOtelMetrics(s)
	if err != nil {
		return nil, err
	}
	s.metrics = m
	return s, nil
}

// Request triggers one pass if idle. While a pass is running it returns
// ErrPassRunning and has no other effect beyond a diagnostic.
func (s *Sweeper) Request() error {
	if !s.running.CompareAndSwap(false, true) {
		s.totalRejected.Add(1)
		s.metrics.addRejected()
		s.log.Warn().Msg("cleanup pass already running, request ignored")
		return ErrPassRunning
	}

	s.totalPasses.Add(1)
	s.metrics.addStarted()

	p := newPass(s)
	s.runner.Start(PassTaskName, p.step, task.WithOnCancel(p.cancelled))
	s.log.Info().Str("pass", p.report.PassID.String()).Msg("cleanup pass scheduled")
	return nil
}

// Shutdown cancels any in-flight pass and returns the guard to idle.
// Invoked at subsystem teardown; safe to call repeatedly.
func (s *Sweeper) Shutdown() {
	if s.runner.Stop(PassTaskName) {
		s.log.Info().Msg("cleanup pass cancelled at shutdown")
	}
	// The cancel hook already cleared the guard; this also covers a pass
	// torn down behind our back via Runner.StopAll.
	s.running.Store(false)
}

// Running reports whether a pass is currently executing.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// LastReport returns the most recently published pass report.
func (s *Sweeper) LastReport() (*Report, bool) {
	r := s.lastReport.Load()
	return r, r != nil
}

// Totals returns a snapshot of the lifetime counters.
func (s *Sweeper) Totals() Totals {
	return Totals{
		Passes:    s.totalPasses.Load(),
		Completed: s.totalCompleted.Load(),
		Aborted:   s.totalAborted.Load(),
		Rejected:  s.totalRejected.Load(),
		Removed:   s.totalRemoved.Load(),
	}
}

// SetBudget adjusts the reclaim batch budget for subsequent batches.
// Non-positive restores the default. Used by config reload and the
// console override.
func (s *Sweeper) SetBudget(d time.Duration) {
	if d <= 0 {
		d = defaultBudget
	}
	s.budget.Store(int64(d))
}

// Budget returns the current reclaim batch budget.
func (s *Sweeper) Budget() time.Duration {
	return time.Duration(s.budget.Load())
}

// passDone publishes telemetry for a finished, aborted, or cancelled pass
// and returns the guard to idle. Every pass exit funnels through here;
// the guard reset is what keeps the system from deadlocking into
// permanent Running.
func (s *Sweeper) passDone(r *Report) {
	s.lastReport.Store(r)
	if r.Aborted {
		s.totalAborted.Add(1)
	} else {
		s.totalCompleted.Add(1)
		s.totalRemoved.Add(uint64(r.Removed))
	}
	s.metrics.recordPass(r)

	evt := s.log.Info()
	if r.Aborted {
		evt = s.log.Warn()
	}
	evt.Str("pass", r.PassID.String()).
		Bool("aborted", r.Aborted).
		Str("reason", r.Reason).
		Int("entities", r.Entities).
		Int("heldEntities", r.HeldEntities).
		Int("itemsConsidered", r.ItemsConsidered).
		Int("orphans", r.Orphans).
		Int("removed", r.Removed).
		Int("skippedInvalid", r.SkippedInvalid).
		Int("skippedClaimed", r.SkippedClaimed).
		Int("steps", r.Steps).
		Dur("scan", r.ScanDuration).
		Dur("expand", r.ExpandDuration).
		Dur("resolve", r.ResolveDuration).
		Dur("reclaim", r.ReclaimDuration).
		Dur("total", r.TotalDuration).
		Msg("cleanup pass finished")

	if s.reports != nil {
		s.reports.Submit(r)
	}

	s.running.Store(false)
}
