package telemetry

import (
	"github.com/rs/zerolog"
)

// Logger exposes the logging capabilities required by engine components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapZerolog adapts a zerolog logger to the Logger interface. Lines are
// written at info level.
func WrapZerolog(logger *zerolog.Logger) Logger {
	return &zerologAdapter{logger: logger}
}

type zerologAdapter struct {
	logger *zerolog.Logger
}

func (l *zerologAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info().Msgf(format, args...)
}

// Metrics exposes the telemetry methods required by engine components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Multi fans every call out to each non-nil Metrics.
func Multi(targets ...Metrics) Metrics {
	filtered := make(multi, 0, len(targets))
	for _, m := range targets {
		if m != nil {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

type multi []Metrics

func (m multi) Add(key string, delta uint64) {
	for _, target := range m {
		target.Add(key, delta)
	}
}

func (m multi) Store(key string, value uint64) {
	for _, target := range m {
		target.Store(key, value)
	}
}
