package report

import (
	"sync"

	"github.com/worldsweep/extension/internal/config"
	"github.com/worldsweep/extension/pkg/sweep"
)

// Memory keeps the most recent pass reports in a bounded ring so the game
// server can query cleanup history without any external service.
type Memory struct {
	cfg     config.MemoryReportConfig
	mu      sync.RWMutex
	reports []*sweep.Report
}

// NewMemory creates an empty history ring. Capacities below one are
// clamped so the latest report is always retained.
func NewMemory(cfg config.MemoryReportConfig) *Memory {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	return &Memory{cfg: cfg}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Init() error { return nil }

func (m *Memory) Close() error { return nil }

// RecordPass appends the report, evicting the oldest entries beyond the
// configured capacity.
func (m *Memory) RecordPass(r *sweep.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports = append(m.reports, r)
	if excess := len(m.reports) - m.cfg.Capacity; excess > 0 {
		m.reports = append([]*sweep.Report(nil), m.reports[excess:]...)
	}
	return nil
}

// Recent returns up to n reports, newest first. n <= 0 or n larger than
// the stored count returns everything.
func (m *Memory) Recent(n int) []*sweep.Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.reports) {
		n = len(m.reports)
	}
	out := make([]*sweep.Report, 0, n)
	for i := len(m.reports) - 1; i >= len(m.reports)-n; i-- {
		out = append(out, m.reports[i])
	}
	return out
}

// Len returns the number of stored reports.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports)
}
