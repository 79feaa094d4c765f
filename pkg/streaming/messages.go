package streaming

import (
	"encoding/json"
	"time"

	"github.com/worldsweep/extension/pkg/sweep"
)

// Message type constants matching the streaming protocol.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypePassReport   = "pass_report"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionStartPayload identifies the extension session that will be
// streaming pass reports.
type SessionStartPayload struct {
	Extension string    `json:"extension"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

// SessionEndPayload closes a session with its accumulated counters.
type SessionEndPayload struct {
	EndedAt time.Time    `json:"ended_at"`
	Totals  sweep.Totals `json:"totals"`
}
