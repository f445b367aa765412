// Package telemetry wraps zerolog into the engine's structured logger,
// adapted from the teacher's pkg/telemetry/logger.go. Trimmed to the
// fields this engine's layers actually emit — resource and function
// identifiers instead of the teacher's run/plan-unit/provider
// bookkeeping, which belongs to a persisted multi-run engine this one
// isn't (spec.md Non-goals: no long-lived daemon state).
package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with the engine's own field vocabulary.
type Logger struct {
	zlog zerolog.Logger
}

type loggerContextKey struct{}

// NewLogger builds a logger writing to w at the given level name
// ("trace","debug","info","warn","error"); an unrecognized or empty
// level defaults to info.
func NewLogger(w io.Writer, level string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zlog := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
	return &Logger{zlog: zlog}
}

// FromEnv builds a logger reading its level from DSC_TRACE_LEVEL (spec
// §6.4), writing to stderr so stdout stays free for operation results.
func FromEnv() *Logger {
	return NewLogger(os.Stderr, os.Getenv("DSC_TRACE_LEVEL"))
}

// WithContext stores l on ctx for FromContext to retrieve downstream.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext retrieves the logger stashed by WithContext, or a default
// stderr/info logger if none was stashed.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return NewLogger(os.Stderr, "info")
}

// WithResource returns a logger tagged with the resource type and name
// the surrounding code is currently operating on.
func (l *Logger) WithResource(resourceType, resourceName string) *Logger {
	return &Logger{zlog: l.zlog.With().
		Str("resource_type", resourceType).
		Str("resource_name", resourceName).
		Logger()}
}

// WithFunction returns a logger tagged with the expression function name
// currently being dispatched.
func (l *Logger) WithFunction(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("function", name).Logger()}
}

// WithError returns a logger carrying err as a structured field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.zlog.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.zlog.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.zlog.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.zlog.Error().Msgf(format, args...) }

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
