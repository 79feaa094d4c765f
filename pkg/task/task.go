// Package task runs named, resumable tasks one step per host tick. It is
// the only component that knows about the host's frame boundary: the host
// calls Runner.Tick once per frame, and every registered task is resumed
// exactly once per call.
package task

import (
	"sync"

	"github.com/rs/zerolog"
)

// Status is returned by a step to tell the runner whether the task wants
// to be resumed on a later tick.
type Status int

const (
	// Yield suspends the task until the next tick.
	Yield Status = iota
	// Done marks the task complete; the runner removes it.
	Done
)

// StepFunc advances a task by one step. Steps run on the ticking goroutine
// and must return promptly; long work is split across yields.
type StepFunc func() Status

// Option configures a task at registration.
type Option func(*entry)

// WithOnCancel registers fn to run when the task is removed before
// completing: replaced by Start, stopped by Stop, or swept up by StopAll.
// It does not run when the task finishes by returning Done.
func WithOnCancel(fn func()) Option {
	return func(e *entry) { e.onCancel = fn }
}

type entry struct {
	name     string
	step     StepFunc
	onCancel func()
}

// Runner multiplexes named resumable tasks over the host's tick. Steps
// execute sequentially, one at a time, inside Tick; Start, Stop and
// StopAll may be called from any goroutine.
type Runner struct {
	mu    sync.Mutex
	tasks map[string]*entry
	order []string
	log   zerolog.Logger
}

// NewRunner returns an empty runner.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{
		tasks: make(map[string]*entry),
		log:   log.With().Str("component", "task").Logger(),
	}
}

// Start registers step under name. If a task with the same name is already
// registered it is cancelled and replaced rather than queued behind it.
func (r *Runner) Start(name string, step StepFunc, opts ...Option) {
	e := &entry{name: name, step: step}
	for _, opt := range opts {
		opt(e)
	}

	r.mu.Lock()
	prev, replaced := r.tasks[name]
	r.tasks[name] = e
	if !replaced {
		r.order = append(r.order, name)
	}
	r.mu.Unlock()

	if replaced {
		r.log.Debug().Str("task", name).Msg("replacing registered task")
		if prev.onCancel != nil {
			prev.onCancel()
		}
	}
}

// Stop cancels the named task if present and reports whether it was.
func (r *Runner) Stop(name string) bool {
	r.mu.Lock()
	e, ok := r.tasks[name]
	if ok {
		delete(r.tasks, name)
		r.removeFromOrder(name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.log.Debug().Str("task", name).Msg("stopped task")
	if e.onCancel != nil {
		e.onCancel()
	}
	return true
}

// StopAll cancels every registered task. Used at subsystem teardown.
func (r *Runner) StopAll() {
	r.mu.Lock()
	cancelled := make([]*entry, 0, len(r.tasks))
	for _, name := range r.order {
		if e, ok := r.tasks[name]; ok {
			cancelled = append(cancelled, e)
		}
	}
	r.tasks = make(map[string]*entry)
	r.order = nil
	r.mu.Unlock()

	for _, e := range cancelled {
		if e.onCancel != nil {
			e.onCancel()
		}
	}
	if len(cancelled) > 0 {
		r.log.Debug().Int("tasks", len(cancelled)).Msg("stopped all tasks")
	}
}

// Tick resumes every registered task once, in registration order. The host
// calls it at its frame boundary; steps never execute anywhere else.
func (r *Runner) Tick() {
	r.mu.Lock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	for _, name := range names {
		r.mu.Lock()
		e, ok := r.tasks[name]
		r.mu.Unlock()
		if !ok {
			// Stopped by an earlier step during this tick.
			continue
		}

		if e.step() == Done {
			r.mu.Lock()
			// The step may have replaced its own registration; only
			// remove the entry that actually ran.
			if cur, stillThere := r.tasks[name]; stillThere && cur == e {
				delete(r.tasks, name)
				r.removeFromOrder(name)
			}
			r.mu.Unlock()
			r.log.Debug().Str("task", name).Msg("task completed")
		}
	}
}

// Has reports whether a task is registered under name.
func (r *Runner) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[name]
	return ok
}

// Len returns the number of registered tasks.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// removeFromOrder drops name from the tick order. Callers hold r.mu.
func (r *Runner) removeFromOrder(name string) {
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
