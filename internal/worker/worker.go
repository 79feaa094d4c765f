// Package worker moves finished pass reports from the sweeper to the
// report sinks without blocking the game thread.
package worker

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/internal/channel"
	"github.com/worldsweep/extension/internal/report"
	"github.com/worldsweep/extension/pkg/sweep"
)

// reportBuffer bounds in-flight reports. Passes finish minutes apart, so
// the buffer only fills when every sink stalls at once.
const reportBuffer = 64

// Manager owns the delivery goroutine between the sweeper and the report
// sinks. It implements sweep.ReportSink: Submit runs on the game thread
// and never blocks, delivery happens on the manager's own goroutine.
type Manager struct {
	sinks []report.Sink
	ch    *channel.Pipe[*sweep.Report]
	wg    sync.WaitGroup
	log   zerolog.Logger

	mu      sync.RWMutex
	started bool
}

// NewManager creates a manager that fans reports out to sinks.
func NewManager(sinks []report.Sink, log zerolog.Logger) *Manager {
	return &Manager{
		sinks: sinks,
		ch:    channel.New[*sweep.Report](reportBuffer),
		log:   log.With().Str("component", "worker").Logger(),
	}
}

// Start initializes the sinks and begins draining submitted reports. A
// sink that fails to initialize is dropped with a warning so one dead
// destination cannot take down delivery to the others.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	active := make([]report.Sink, 0, len(m.sinks))
	for _, s := range m.sinks {
		if err := s.Init(); err != nil {
			m.log.Warn().Err(err).Str("sink", s.Name()).
				Msg("Report sink failed to initialize, dropping")
			continue
		}
		active = append(active, s)
	}
	m.sinks = active

	m.wg.Add(1)
	go m.deliver()
}

// deliver fans each report out to every active sink in order.
func (m *Manager) deliver() {
	defer m.wg.Done()
	for r := range m.ch.Receive() {
		for _, s := range m.sinks {
			if err := s.RecordPass(r); err != nil {
				m.log.Error().Err(err).
					Str("sink", s.Name()).
					Str("passId", r.PassID.String()).
					Msg("Failed to deliver pass report")
			}
		}
	}
}

// Submit queues a report for delivery. When the buffer is full the report
// is dropped rather than stalling the caller.
func (m *Manager) Submit(r *sweep.Report) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.started {
		return
	}

	if !m.ch.TrySend(r) {
		m.log.Warn().Str("passId", r.PassID.String()).
			Msg("Report buffer full, dropping pass report")
	}
}

// Stop drains queued reports, then closes every sink.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.ch.Close()
	m.mu.Unlock()

	m.wg.Wait()

	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			m.log.Error().Err(err).Str("sink", s.Name()).
				Msg("Failed to close report sink")
		}
	}
}

// Sinks returns the active sinks. Before Start this is every configured
// sink; afterwards only the ones that initialized.
func (m *Manager) Sinks() []report.Sink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]report.Sink, len(m.sinks))
	copy(out, m.sinks)
	return out
}
