package logging

import "github.com/rs/zerolog"

// DispatcherLogger exposes a zerolog.Logger through the flat leveled
// interface the event dispatcher expects. Key-value pairs are handed to
// zerolog as an alternating slice, which it parses natively, dropping a
// dangling key and any key that is not a string.
type DispatcherLogger struct {
	zl zerolog.Logger
}

// NewDispatcherLogger wraps zl for use as the dispatcher's logger.
func NewDispatcherLogger(zl zerolog.Logger) DispatcherLogger {
	return DispatcherLogger{zl: zl}
}

func (l DispatcherLogger) Debug(msg string, kv ...any) { l.zl.Debug().Fields(kv).Msg(msg) }
func (l DispatcherLogger) Info(msg string, kv ...any)  { l.zl.Info().Fields(kv).Msg(msg) }
func (l DispatcherLogger) Error(msg string, kv ...any) { l.zl.Error().Fields(kv).Msg(msg) }
