package report

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/internal/config"
	"github.com/worldsweep/extension/pkg/streaming"
	"github.com/worldsweep/extension/pkg/sweep"
)

// Websocket streams pass reports to a listening web service as they
// finish. Reports are fire-and-forget; only the session handshake waits
// for a server ack.
type Websocket struct {
	conn    *link
	cfg     config.WebsocketReportConfig
	session SessionInfo

	// Delivered counters, sent with session_end so the server can tell
	// whether any fire-and-forget reports went missing.
	mu     sync.Mutex
	totals sweep.Totals
}

// NewWebsocket creates a WebSocket report sink.
func NewWebsocket(cfg config.WebsocketReportConfig, session SessionInfo, log zerolog.Logger) *Websocket {
	return &Websocket{
		conn:    newLink(log),
		cfg:     cfg,
		session: session,
	}
}

func (w *Websocket) Name() string { return "websocket" }

// Init connects to the server and announces the session, waiting for the
// ack. The session_start message is cached so reconnects replay it before
// any further reports.
func (w *Websocket) Init() error {
	if err := w.conn.dial(w.cfg.URL, w.cfg.Secret); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeSessionStart, streaming.SessionStartPayload{
		Extension: w.session.Extension,
		Version:   w.session.Version,
		StartedAt: w.session.StartedAt,
	})
	if err != nil {
		return err
	}

	w.conn.setGreeting(data)
	return w.conn.sendAndWait(data, streaming.TypeSessionStart, ackTimeout)
}

// RecordPass sends the report fire-and-forget.
func (w *Websocket) RecordPass(r *sweep.Report) error {
	w.mu.Lock()
	w.totals.Passes++
	if r.Aborted {
		w.totals.Aborted++
	} else {
		w.totals.Completed++
	}
	w.totals.Removed += uint64(r.Removed)
	w.mu.Unlock()

	return w.sendEnvelope(streaming.TypePassReport, r)
}

// Close sends session_end with the delivered counters, waits for the ack
// and tears the connection down.
func (w *Websocket) Close() error {
	w.mu.Lock()
	totals := w.totals
	w.mu.Unlock()

	endErr := w.sendEnvelopeAndWait(streaming.TypeSessionEnd, streaming.SessionEndPayload{
		EndedAt: time.Now().UTC(),
		Totals:  totals,
	})

	if closeErr := w.conn.close(); closeErr != nil {
		return closeErr
	}
	return endErr
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (w *Websocket) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	w.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (w *Websocket) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return w.conn.sendAndWait(data, msgType, ackTimeout)
}
