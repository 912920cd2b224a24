// Package logger defines the logging port consumed by the persistence core
// and implements it on zerolog. Services log through the port so tests can
// substitute a no-op or capturing implementation.
package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Fields carries structured context attached to a log line.
type Fields map[string]any

// Logger is the logging port. Warn is used for recovered conditions
// (fallback reads, one-sided presence); Error for surfaced failures.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
}

type zerologLogger struct {
	zl zerolog.Logger
}

// New returns a Logger writing structured JSON lines to w.
func New(w io.Writer) Logger {
	return &zerologLogger{
		zl: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}

func (l *zerologLogger) Debug(msg string, fields Fields) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields Fields) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields Fields) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields Fields) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, fields Fields) {
	if len(fields) > 0 {
		ev = ev.Fields(map[string]any(fields))
	}
	ev.Msg(msg)
}
