package report

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/pkg/streaming"
)

const (
	outBufSize   = 256
	ackBufSize   = 16
	redialMax    = 10
	backoffCap   = 30 * time.Second
	frameTimeout = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// link owns one WebSocket connection to the collector. Every frame leaves
// through a single writer goroutine fed by out; server acks come back on
// acks. When a read or write fails the link redials with backoff and
// replays the greeting frame so the collector can re-associate the
// session.
type link struct {
	mu        sync.Mutex
	sock      *ws.Conn
	greeting  []byte // session_start frame, replayed after every redial
	stopped   bool
	redialing bool

	out  chan []byte
	acks chan streaming.AckMessage
	quit chan struct{}

	wsURL  string
	secret string

	log zerolog.Logger
}

func newLink(log zerolog.Logger) *link {
	return &link{
		out:  make(chan []byte, outBufSize),
		acks: make(chan streaming.AckMessage, ackBufSize),
		quit: make(chan struct{}),
		log:  log,
	}
}

// dial opens the connection and starts the reader and writer.
func (l *link) dial(rawURL, secret string) error {
	l.wsURL = rawURL
	l.secret = secret

	sock, err := l.connect()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.sock = sock
	l.mu.Unlock()

	go l.writer()
	go l.reader()
	return nil
}

// connect performs one dial with the shared secret in the query string.
func (l *link) connect() (*ws.Conn, error) {
	u, err := url.Parse(l.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", l.secret)
	u.RawQuery = q.Encode()

	sock, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return sock, nil
}

// setGreeting stores the frame replayed after every reconnect.
func (l *link) setGreeting(data []byte) {
	l.mu.Lock()
	l.greeting = data
	l.mu.Unlock()
}

func (l *link) current() *ws.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sock
}

// writeFrame writes one text frame within the frame deadline.
func writeFrame(sock *ws.Conn, data []byte) error {
	if err := sock.SetWriteDeadline(time.Now().Add(frameTimeout)); err != nil {
		return err
	}
	return sock.WriteMessage(ws.TextMessage, data)
}

// writer drains out onto the socket. It exits on quit or on the first
// write error, which hands the link to redial.
func (l *link) writer() {
	for {
		select {
		case <-l.quit:
			return
		case data := <-l.out:
			sock := l.current()
			if sock == nil {
				continue
			}
			if err := writeFrame(sock, data); err != nil {
				l.log.Warn().Err(err).Msg("WebSocket write failed")
				go l.redial()
				return
			}
		}
	}
}

// reader routes server acks onto the acks channel; anything else is
// logged at debug and skipped. A read error hands the link to redial.
func (l *link) reader() {
	for {
		sock := l.current()
		if sock == nil {
			return
		}

		_, message, err := sock.ReadMessage()
		if err != nil {
			select {
			case <-l.quit:
				return
			default:
			}
			l.log.Warn().Err(err).Msg("WebSocket read failed")
			go l.redial()
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			l.log.Debug().Str("raw", string(message)).Msg("Ignoring non-ack message")
			continue
		}

		select {
		case l.acks <- ack:
		default:
			l.log.Debug().Str("for", ack.For).Msg("Ack buffer full, dropping")
		}
	}
}

// redial re-establishes the connection with doubling backoff, replays the
// greeting, then restarts the reader and writer. Only one redial runs at
// a time; reader and writer both report failures, so the loser of that
// race returns immediately. After redialMax failed attempts the link
// stays down until closed.
func (l *link) redial() {
	l.mu.Lock()
	if l.stopped || l.redialing {
		l.mu.Unlock()
		return
	}
	l.redialing = true
	if l.sock != nil {
		_ = l.sock.Close()
		l.sock = nil
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.redialing = false
		l.mu.Unlock()
	}()

	backoff := time.Second
	for attempt := 1; attempt <= redialMax; attempt++ {
		l.log.Info().Int("attempt", attempt).Dur("backoff", backoff).Msg("Reconnecting WebSocket")
		select {
		case <-l.quit:
			return
		case <-time.After(backoff):
		}

		sock, err := l.connect()
		if err != nil {
			l.log.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect dial failed")
			backoff *= 2
			if backoff > backoffCap {
				backoff = backoffCap
			}
			continue
		}

		l.mu.Lock()
		l.sock = sock
		greeting := l.greeting
		l.mu.Unlock()

		if greeting != nil {
			if err := writeFrame(sock, greeting); err != nil {
				l.log.Warn().Err(err).Msg("Session replay failed after reconnect")
				_ = sock.Close()
				continue
			}
		}

		l.log.Info().Int("attempt", attempt).Msg("WebSocket reconnected")
		go l.writer()
		go l.reader()
		return
	}

	l.log.Error().Int("attempts", redialMax).Msg("WebSocket reconnect abandoned")
}

// send queues one frame without blocking; a full buffer drops the frame.
func (l *link) send(data []byte) {
	select {
	case l.out <- data:
	default:
		l.log.Warn().Msg("WebSocket send buffer full, dropping frame")
	}
}

// sendAndWait queues data and blocks until the server acks the given
// message type, the timeout passes, or the link is closed.
func (l *link) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	l.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-l.acks:
			if ack.For == ackFor {
				return nil
			}
			// Someone else's ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.quit:
			return fmt.Errorf("%w: no ack for %q", ErrSinkClosed, ackFor)
		}
	}
}

// close sends the close frame and stops both goroutines. Safe to call
// more than once.
func (l *link) close() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	l.greeting = nil
	close(l.quit)
	sock := l.sock
	l.sock = nil
	l.mu.Unlock()

	if sock == nil {
		return nil
	}
	_ = sock.WriteMessage(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
	)
	return sock.Close()
}
