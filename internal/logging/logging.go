package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Options configures the extension logger.
type Options struct {
	Level          string
	Dir            string
	ExtensionName  string
	SessionStart   time.Time
	GraylogEnabled bool
	GraylogAddress string
}

// Manager owns the session log file and the root zerolog logger.
type Manager struct {
	log  zerolog.Logger
	dir  string
	file *os.File
}

// New opens the session log file and builds the root logger writing
// console format to stdout, plain console format to the file, and GELF
// to Graylog when enabled.
func New(opts Options) (*Manager, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}

	path := LogFilePath(opts.Dir, opts.ExtensionName, opts.SessionStart)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	level := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		// console format with colors to console
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
		// console format without colors to file
		zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	}

	if opts.GraylogEnabled {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("connecting to graylog: %w", err)
		}
		gw.Facility = opts.ExtensionName
		writers = append(writers, gw)
	}

	m := &Manager{
		dir:  opts.Dir,
		file: file,
	}
	m.log = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	m.log.Info().Str("loglevel", level.String()).Msg("Logging set up")

	return m, nil
}

// Logger returns the root logger.
func (m *Manager) Logger() zerolog.Logger {
	return m.log
}

// TraceSampled returns a copy of the root logger that rate-limits its
// entries, for use on per-tick paths.
func (m *Manager) TraceSampled() zerolog.Logger {
	return m.log.Sample(&zerolog.BurstSampler{
		// allow max 5 entries per 10 seconds
		// once reached, sample 1 in 100
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}

// WriteLog writes a host-originated log entry at the given level.
func (m *Manager) WriteLog(functionName, data, level string) {
	m.log.WithLevel(parseLevel(level)).Str("function", functionName).Msg(data)
}

// Close closes the session log file.
func (m *Manager) Close() error {
	return m.file.Close()
}

// RemoveOldLogs deletes .log files in the logs directory older than
// daysDelta days.
func (m *Manager) RemoveOldLogs(daysDelta int) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to read logs dir")
		return
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			m.log.Warn().Err(err).Msg("Failed to get file info")
			continue
		}
		if filepath.Ext(f.Name()) != ".log" {
			continue
		}
		if time.Since(info.ModTime()).Hours() > float64(daysDelta*24) {
			os.Remove(filepath.Join(m.dir, f.Name()))
		}
	}
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, extensionName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", extensionName, sessionStart.Format("20060102_150405")),
	)
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
