// Package schedule triggers cleanup passes on a timer so orphaned held
// entities are reclaimed without anyone asking for it.
package schedule

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/internal/config"
)

// Requester starts a cleanup pass. Satisfied by *sweep.Sweeper.
type Requester interface {
	Request() error
}

// Scheduler requests a pass after an initial delay and then at a fixed
// interval. An interval of zero means a single delayed pass.
type Scheduler struct {
	sweeper Requester
	cfg     config.SweepConfig
	log     zerolog.Logger

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
}

// NewScheduler creates a stopped scheduler; nothing runs until Start.
func NewScheduler(sweeper Requester, cfg config.SweepConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		cfg:      cfg,
		log:      log.With().Str("component", "schedule").Logger(),
		stopChan: make(chan struct{}),
	}
}

// IsRunning reports whether the schedule loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start launches the schedule goroutine. Calling Start while running is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	go s.run(stop)
}

func (s *Scheduler) run(stop chan struct{}) {
	defer func() {
		s.mu.Lock()
		// A restart may have replaced the channel; only the owning
		// goroutine clears the flag.
		if s.stopChan == stop {
			s.isRunning = false
		}
		s.mu.Unlock()
	}()

	s.log.Info().
		Dur("initialDelay", s.cfg.InitialDelay).
		Dur("interval", s.cfg.Interval).
		Msg("Auto-clean schedule started")

	delay := time.NewTimer(s.cfg.InitialDelay)
	defer delay.Stop()

	select {
	case <-stop:
		return
	case <-delay.C:
	}

	s.request()

	if s.cfg.Interval <= 0 {
		s.log.Info().Msg("No interval configured, auto-clean ran once")
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.request()
		}
	}
}

// request asks the sweeper for a pass. A rejection only means a pass is
// still running, so it logs at debug and waits for the next slot.
func (s *Scheduler) request() {
	if err := s.sweeper.Request(); err != nil {
		s.log.Debug().Err(err).Msg("Scheduled cleanup request rejected")
		return
	}
	s.log.Debug().Msg("Scheduled cleanup pass requested")
}

// Stop halts the schedule loop. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
}
