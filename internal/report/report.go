// Package report delivers finished pass telemetry to the configured
// destinations. Every destination implements Sink; NewSinks builds the
// enabled set from configuration.
package report

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/internal/config"
	"github.com/worldsweep/extension/pkg/sweep"
)

// ErrSinkClosed is returned when a delivery races a sink shutdown.
var ErrSinkClosed = errors.New("report sink closed")

// Sink is the interface all report destinations must satisfy.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Lifecycle
	Init() error
	Close() error

	// RecordPass delivers one finished pass report.
	RecordPass(r *sweep.Report) error
}

// SessionInfo identifies the running extension session to remote sinks.
type SessionInfo struct {
	Extension string
	Version   string
	StartedAt time.Time
}

// Sinks bundles the destinations constructed for one session.
type Sinks struct {
	// History is the in-memory ring backing console queries. It is always
	// present, even when every remote destination is disabled.
	History *Memory
	// All holds History plus every enabled remote sink, in delivery order.
	All []Sink
}

// NewSinks builds sink instances based on configuration. Construction does
// no I/O; callers run the Init/Close lifecycle, normally through the
// delivery worker.
func NewSinks(cfg config.ReportConfig, session SessionInfo, backupPath string, log zerolog.Logger) Sinks {
	history := NewMemory(cfg.Memory)
	all := []Sink{history}

	if cfg.Influx.Enabled {
		all = append(all, NewInflux(cfg.Influx, session, backupPath, log))
	}
	if cfg.Websocket.Enabled {
		all = append(all, NewWebsocket(cfg.Websocket, session, log))
	}
	if cfg.Webhook.Enabled {
		all = append(all, NewWebhook(cfg.Webhook, session, log))
	}

	return Sinks{History: history, All: all}
}
