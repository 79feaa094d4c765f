// Package dispatcher routes named host commands to registered handlers.
// Calls arrive on the game thread, so a handler may opt into a bounded
// queue with its own drain goroutine; bursty traffic then costs the host
// one channel send per call instead of the handler's full run time.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/worldsweep/extension/internal/dispatcher"

// ErrNoHandler is returned by Dispatch for commands nothing registered.
var ErrNoHandler = errors.New("no handler registered")

// Event is one host command with its raw string arguments.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes one event and returns a reply for the host.
type HandlerFunc func(Event) (any, error)

// Logger is the minimal logging surface the dispatcher needs. The logging
// package provides a zerolog-backed implementation.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option adjusts how one handler is registered.
type Option func(*registration)

type registration struct {
	queueSize int
	logged    bool
}

// Buffered queues up to size events and handles them on a dedicated
// goroutine. Dispatch returns "queued" without waiting for the handler;
// when the queue is full the event is dropped with an error instead of
// stalling the caller.
func Buffered(size int) Option {
	return func(r *registration) {
		r.queueSize = size
	}
}

// Logged wraps the handler with timing and error logging.
func Logged() Option {
	return func(r *registration) {
		r.logged = true
	}
}

// Dispatcher maps command names to handlers. Register everything during
// startup; Dispatch and the query methods are safe for concurrent use
// afterwards.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	log      Logger

	queueLen  metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// queues feeds the gauge callback and Close; the map, not the
	// channels, is what mu guards.
	mu     sync.RWMutex
	queues map[string]chan Event
	wg     sync.WaitGroup
}

// New creates an empty dispatcher. Instruments register against the
// global OTel meter, which stays a no-op unless a metrics provider is
// installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		log:      logger,
	}
	if err := d.initInstruments(otel.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) initInstruments(m metric.Meter) error {
	var err error

	d.queueLen, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Events waiting in buffered command queues"),
	)
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, q := range d.queues {
				o.ObserveInt64(d.queueLen, int64(len(q)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueLen,
	)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Events handled to completion"),
	)
	if err != nil {
		return fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Events dropped because a queue was full"),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	return nil
}

// Register binds command to h with the given options.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}

	if reg.queueSize > 0 {
		h = d.queuedHandler(command, reg.queueSize, h)
	}
	if reg.logged {
		h = d.loggedHandler(command, h)
	}

	d.handlers[command] = h
}

// Dispatch routes an event to its handler and returns the handler's
// reply.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, e.Command)
	}
	return h(e)
}

// HasHandler reports whether command is registered.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	cmds := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}

// Close shuts the buffered queues and waits until their drain goroutines
// have handled everything already accepted. Dispatch must not be called
// after Close.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	queues := d.queues
	d.queues = make(map[string]chan Event)
	d.mu.Unlock()

	for _, q := range queues {
		close(q)
	}
	d.wg.Wait()
}

// queuedHandler returns a handler that enqueues the event and lets a
// dedicated goroutine run h.
func (d *Dispatcher) queuedHandler(command string, size int, h HandlerFunc) HandlerFunc {
	queue := make(chan Event, size)

	d.mu.Lock()
	d.queues[command] = queue
	d.mu.Unlock()

	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range queue {
			h(e)
			d.processed.Add(context.Background(), 1, cmdAttr)
		}
	}()

	return func(e Event) (any, error) {
		select {
		case queue <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, cmdAttr)
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

// loggedHandler returns a handler that logs outcome and duration around h.
func (d *Dispatcher) loggedHandler(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.log.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.log.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.log.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
