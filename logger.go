package loom

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the interface the server and its middlewares use for their own
// diagnostics. It mirrors the teacher's level-method Logger shape, but is
// backed by zerolog instead of a hand-rolled text/template renderer.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

type zlogger struct {
	l zerolog.Logger
}

// NewLogger returns a Logger writing leveled, structured events to stderr.
func NewLogger() Logger {
	return &zlogger{l: zerolog.New(os.Stderr).With().Timestamp().Logger()}
}

// NewLoggerWithOutput returns a Logger writing to an arbitrary zerolog
// level writer, e.g. one built with zerolog.MultiLevelWriter.
func NewLoggerWithOutput(w zerolog.LevelWriter) Logger {
	return &zlogger{l: zerolog.New(w).With().Timestamp().Logger()}
}

func (z *zlogger) event(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func (z *zlogger) Debug(msg string, kv ...interface{}) { z.event(z.l.Debug(), msg, kv) }
func (z *zlogger) Info(msg string, kv ...interface{})  { z.event(z.l.Info(), msg, kv) }
func (z *zlogger) Warn(msg string, kv ...interface{})  { z.event(z.l.Warn(), msg, kv) }
func (z *zlogger) Error(msg string, kv ...interface{}) { z.event(z.l.Error(), msg, kv) }
