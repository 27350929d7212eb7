// Package logx defines the logging interface used throughout ridgedb. Every
// package logs through Logger rather than a concrete library, so the
// default zerolog-backed implementation can be swapped in tests.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the leveled, printf-style logging contract every package
// depends on.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// New returns a zerolog-backed Logger writing to w at the given level.
// level accepts zerolog level names ("debug", "info", "warn", "error");
// an unrecognized name falls back to "info".
func New(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &zeroLogger{logger: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Default returns a zerolog Logger writing to stderr at info level.
func Default() Logger {
	return New(os.Stderr, "info")
}

type zeroLogger struct {
	logger zerolog.Logger
}

func (l *zeroLogger) Debug(format string, args ...any) { l.logger.Debug().Msgf(format, args...) }
func (l *zeroLogger) Info(format string, args ...any)  { l.logger.Info().Msgf(format, args...) }
func (l *zeroLogger) Warn(format string, args ...any)  { l.logger.Warn().Msgf(format, args...) }
func (l *zeroLogger) Error(format string, args ...any) { l.logger.Error().Msgf(format, args...) }

// Nop is a Logger that discards everything, useful for tests that don't
// want log noise but still need to satisfy the interface.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
