package middleware

import (
	"os"
	"time"

	"github.com/loomhq/loom"
	"github.com/rs/zerolog"
)

// LoggerConfig configures the Logger middleware.
type LoggerConfig struct {
	// Output is the zerolog-backed writer access log lines are written
	// to. Optional. Default value: os.Stdout.
	Output zerolog.LevelWriter
}

// DefaultLoggerConfig is the default Logger middleware config.
var DefaultLoggerConfig = LoggerConfig{}

// Logger returns a middleware that emits one structured access-log event
// per request (remote IP, method, path, status, latency, bytes),
// grounded on the teacher's gases/logger.go field set but emitted through
// zerolog instead of a text/fasttemplate renderer, since zerolog is the
// ecosystem's idiomatic structured-logging library.
func Logger() loom.Middleware {
	return LoggerWithConfig(DefaultLoggerConfig)
}

// LoggerWithConfig returns a Logger middleware from config. See Logger.
func LoggerWithConfig(config LoggerConfig) loom.Middleware {
	var zl zerolog.Logger
	if config.Output != nil {
		zl = zerolog.New(config.Output).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return func(next loom.Handler) loom.Handler {
		return func(req *loom.Request, res *loom.Response) error {
			start := time.Now()
			err := next(req, res)
			latency := time.Since(start)

			txBytes := int64(0)
			if res.Body.Kind != loom.BodyNull {
				txBytes = res.Body.Length
			}

			ev := zl.Info()
			if err != nil {
				ev = zl.Error().Err(err)
			}
			ev.
				Str("remote_ip", req.Conn.RemoteAddr).
				Str("method", req.Method).
				Str("path", req.Path).
				Int("status", res.Status).
				Dur("latency", latency).
				Int64("tx_bytes", txBytes).
				Msg("request")

			return err
		}
	}
}
