// Package handlers wires host commands to the sweep engine.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/worldsweep/extension/internal/dispatcher"
	"github.com/worldsweep/extension/internal/logging"
	"github.com/worldsweep/extension/internal/parser"
	"github.com/worldsweep/extension/internal/report"
	"github.com/worldsweep/extension/internal/schedule"
	"github.com/worldsweep/extension/internal/util"
	"github.com/worldsweep/extension/pkg/sweep"
	"github.com/worldsweep/extension/pkg/task"
)

// logLevels are the levels the host may use with :LOG:.
var logLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Sweeper          *sweep.Sweeper
	History          *report.Memory
	Scheduler        *schedule.Scheduler
	Runner           *task.Runner
	LogManager       *logging.Manager
	ExtensionName    string
	ExtensionVersion string
	BuildDate        string
}

// Service provides handler methods for processing host commands
type Service struct {
	deps         Dependencies
	writeLogFunc func(functionName, data, level string)
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	s := &Service{
		deps: deps,
	}
	// Default writeLog function uses the logging manager
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// RegisterHandlers registers all command handlers with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Called every frame - must stay cheap and silent
	d.Register(":TICK:", s.handleTick)

	// Cleanup control - sync so the caller sees rejections immediately
	d.Register(":SWEEP:RUN:", s.handleSweepRun, dispatcher.Logged())
	d.Register(":SWEEP:STOP:", s.handleSweepStop, dispatcher.Logged())
	d.Register(":SWEEP:BUDGET:", s.handleSweepBudget, dispatcher.Logged())
	d.Register(":SWEEP:AUTO:", s.handleSweepAuto, dispatcher.Logged())

	// Read-only queries - sync
	d.Register(":SWEEP:STATUS:", s.handleSweepStatus)
	d.Register(":SWEEP:HISTORY:", s.handleSweepHistory)
	d.Register(":VERSION:", s.handleVersion)

	// Host-side log lines - buffered, bursty during mission load
	d.Register(":LOG:", s.handleLog, dispatcher.Buffered(1000), dispatcher.Logged())
}

// handleTick advances the task runner by one step. It runs on every host
// frame, so it does no logging of its own.
func (s *Service) handleTick(e dispatcher.Event) (any, error) {
	s.deps.Runner.Tick()
	return nil, nil
}

// handleSweepRun requests a cleanup pass. An optional first argument
// overrides the reclaim budget in milliseconds for this and later passes.
func (s *Service) handleSweepRun(e dispatcher.Event) (any, error) {
	functionName := ":SWEEP:RUN:"
	data := e.Args

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) > 0 && data[0] != "" {
		budget, err := parser.MillisFromFloat(data[0])
		if err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error parsing budget: %v`, err), "ERROR")
			return nil, err
		}
		s.deps.Sweeper.SetBudget(budget)
	}

	if err := s.deps.Sweeper.Request(); err != nil {
		if errors.Is(err, sweep.ErrPassRunning) {
			s.writeLog(functionName, "Cleanup pass already running, request rejected", "WARN")
		}
		return nil, err
	}

	s.writeLog(functionName, "Cleanup pass requested", "INFO")
	return "started", nil
}

// handleSweepStop cancels the pass in flight, if any.
func (s *Service) handleSweepStop(e dispatcher.Event) (any, error) {
	s.deps.Sweeper.Shutdown()
	s.writeLog(":SWEEP:STOP:", "Cleanup pass stopped", "INFO")
	return "stopped", nil
}

// statusReply is the :SWEEP:STATUS: response, serialized as JSON.
type statusReply struct {
	Running bool          `json:"running"`
	Budget  string        `json:"budget"`
	Auto    bool          `json:"auto"`
	Totals  sweep.Totals  `json:"totals"`
	Last    *sweep.Report `json:"last,omitempty"`
}

func (s *Service) handleSweepStatus(e dispatcher.Event) (any, error) {
	reply := statusReply{
		Running: s.deps.Sweeper.Running(),
		Budget:  s.deps.Sweeper.Budget().String(),
		Auto:    s.deps.Scheduler.IsRunning(),
		Totals:  s.deps.Sweeper.Totals(),
	}
	if last, ok := s.deps.Sweeper.LastReport(); ok {
		reply.Last = last
	}

	out, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(out), nil
}

// handleSweepHistory returns recent pass reports as JSON, newest first.
// An optional first argument limits the count.
func (s *Service) handleSweepHistory(e dispatcher.Event) (any, error) {
	functionName := ":SWEEP:HISTORY:"
	data := e.Args

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	count := 0
	if len(data) > 0 && data[0] != "" {
		n, err := parser.IntFromFloat(data[0])
		if err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error parsing count: %v`, err), "ERROR")
			return nil, err
		}
		count = int(n)
	}

	out, err := json.Marshal(s.deps.History.Recent(count))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return string(out), nil
}

// handleSweepBudget sets the reclaim batch budget in milliseconds and
// returns the value actually applied.
func (s *Service) handleSweepBudget(e dispatcher.Event) (any, error) {
	functionName := ":SWEEP:BUDGET:"
	data := e.Args

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) == 0 || data[0] == "" {
		return nil, fmt.Errorf("expected budget in milliseconds")
	}

	budget, err := parser.MillisFromFloat(data[0])
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error parsing budget: %v`, err), "ERROR")
		return nil, err
	}

	s.deps.Sweeper.SetBudget(budget)
	applied := s.deps.Sweeper.Budget()
	s.writeLog(functionName, fmt.Sprintf("Reclaim budget set to %s", applied), "INFO")
	return applied.String(), nil
}

// handleSweepAuto enables or disables the auto-clean schedule.
func (s *Service) handleSweepAuto(e dispatcher.Event) (any, error) {
	functionName := ":SWEEP:AUTO:"
	data := e.Args

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("expected true or false")
	}

	enable, err := parser.BoolFromString(data[0])
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error parsing flag: %v`, err), "ERROR")
		return nil, err
	}

	if enable {
		s.deps.Scheduler.Start()
		s.writeLog(functionName, "Auto-clean enabled", "INFO")
		return "enabled", nil
	}

	s.deps.Scheduler.Stop()
	s.writeLog(functionName, "Auto-clean disabled", "INFO")
	return "disabled", nil
}

// versionReply is the :VERSION: response, serialized as JSON.
type versionReply struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
}

func (s *Service) handleVersion(e dispatcher.Event) (any, error) {
	out, err := json.Marshal(versionReply{
		Name:    s.deps.ExtensionName,
		Version: s.deps.ExtensionVersion,
		Build:   s.deps.BuildDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal version: %w", err)
	}
	return string(out), nil
}

// handleLog forwards a host-side log line into the extension log. The
// first argument is the level, the rest form the message.
func (s *Service) handleLog(e dispatcher.Event) (any, error) {
	functionName := ":LOG:"
	data := e.Args

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 2 {
		return nil, fmt.Errorf("expected level and message, got %d args", len(data))
	}

	level := strings.ToUpper(data[0])
	if !util.Contains(logLevels, level) {
		level = "INFO"
	}

	s.writeLog(functionName, strings.Join(data[1:], " "), level)
	return nil, nil
}
