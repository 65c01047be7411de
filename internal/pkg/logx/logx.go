/*
Package logx provides a structured logging wrapper based on zerolog.

It initialises the process-wide logger (console output in development, JSON in production),
derives component-scoped child loggers, and offers key/value helpers for the common levels.
It also hosts the panic guard used around every message handler and room tick.
*/
package logx

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitGlobalLogger initializes the global zerolog instance.
// Development: Debug level with a human-readable console writer.
// Production: Info level with JSON lines on stdout.
func InitGlobalLogger(isDevelopment bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if isDevelopment {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    false,
			TimeFormat: time.RFC3339,
		})
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger.With().Caller().Logger()
}

// SetOutput redirects the global logger, mostly so tests can silence it.
func SetOutput(w io.Writer) {
	log.Logger = log.Logger.Output(w)
}

// Logger returns a pointer to the global zerolog.Logger instance.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// emit writes msg on ev with the key/value fields. An odd field count is reported and the
// fields are dropped, zerolog would panic on them otherwise.
func emit(ev *zerolog.Event, level, msg string, fields []any) {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Str("log_level", level).
			Msgf("logx.%s called with an odd number of fields: %v", level, fields)
		fields = nil
	}
	// Skip emit and the exported wrapper.
	ev.Fields(fields).CallerSkipFrame(2).Msg(msg)
}

// Info logs at Info level.
func Info(msg string, fields ...any) {
	emit(Logger().Info(), "Info", msg, fields)
}

// Warn logs at Warn level.
func Warn(msg string, fields ...any) {
	emit(Logger().Warn(), "Warn", msg, fields)
}

// Error logs err at Error level.
func Error(err error, msg string, fields ...any) {
	emit(Logger().Error().Err(err), "Error", msg, fields)
}

// Fatal logs err and exits the process.
func Fatal(err error, msg string, fields ...any) {
	emit(Logger().Fatal().Err(err), "Fatal", msg, fields)
}

// Recover must be deferred directly. It swallows a panic and logs it on logger together
// with the stack, so one bad message or tick never takes the process down.
func Recover(logger zerolog.Logger, where string) {
	if r := recover(); r != nil {
		logger.Error().
			Err(fmt.Errorf("panic: %v", r)).
			Str("where", where).
			Bytes("stack", debug.Stack()).
			Msg("Recovered from panic")
	}
}
