package settings

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEvent describes one completed Provider operation.
type LogEvent struct {
	Operation  string
	Version    Version
	Previous   *Version
	Properties int
	Written    int
	Deleted    int
	Duration   time.Duration
	Err        error
}

// Logger records Provider operations.
type Logger interface {
	LogOperation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogOperation implements Logger.
func (f LoggerFunc) LogOperation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogOperation(LogEvent) {}

// WithLogger attaches an operation logger to the Provider.
func WithLogger(logger Logger) Option {
	return func(cfg *providerConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// NewZerologLogger adapts a zerolog.Logger. Failed operations are logged at
// error level, the rest at debug.
func NewZerologLogger(logger zerolog.Logger) Logger {
	return zerologLogger{logger: logger}
}

type zerologLogger struct {
	logger zerolog.Logger
}

func (l zerologLogger) LogOperation(event LogEvent) {
	entry := l.logger.Debug()
	if event.Err != nil {
		entry = l.logger.Error().Err(event.Err)
	}
	entry = entry.
		Str("op", event.Operation).
		Stringer("version", event.Version).
		Int("properties", event.Properties).
		Int("written", event.Written).
		Int("deleted", event.Deleted).
		Dur("duration", event.Duration)
	if event.Previous != nil {
		entry = entry.Stringer("previous", event.Previous)
	}
	entry.Msg("settings operation")
}
