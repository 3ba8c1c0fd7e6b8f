package middleware

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/loomhq/loom"
)

// GzipConfig configures the Gzip middleware.
type GzipConfig struct {
	// Skipper, when it returns true, bypasses compression for a request.
	// Optional. Default value: never skip.
	Skipper func(req *loom.Request) bool

	// Level is the compression level passed to compress/gzip.
	// Optional. Default value: gzip.DefaultCompression.
	Level int

	// MIMETypes restricts compression to responses whose Content-Type
	// (prefix match) is in this list. An empty list compresses any
	// response.
	MIMETypes []string
}

// DefaultGzipConfig is the default Gzip middleware config.
var DefaultGzipConfig = GzipConfig{
	Level: gzip.DefaultCompression,
}

// Gzip returns a middleware that compresses the response body with gzip
// when the client's Accept-Encoding lists it, grounded on the teacher's
// gases/gzip.go.
func Gzip() loom.Middleware {
	return GzipWithConfig(DefaultGzipConfig)
}

// GzipWithConfig returns a Gzip middleware from config. See Gzip.
func GzipWithConfig(config GzipConfig) loom.Middleware {
	if config.Level == 0 {
		config.Level = DefaultGzipConfig.Level
	}

	return func(next loom.Handler) loom.Handler {
		return func(req *loom.Request, res *loom.Response) error {
			appendVary(res, "Accept-Encoding")

			if config.Skipper != nil && config.Skipper(req) {
				return next(req, res)
			}
			if !req.Header.HasToken("Accept-Encoding", "gzip") {
				return next(req, res)
			}

			if err := next(req, res); err != nil {
				return err
			}

			if res.Body.Kind == loom.BodyNull {
				return nil
			}
			if !mimeAllowed(res.Header.Get("Content-Type"), config.MIMETypes) {
				return nil
			}

			var buf bytes.Buffer
			gw, err := gzip.NewWriterLevel(&buf, config.Level)
			if err != nil {
				return err
			}
			if _, err := io.Copy(gw, res.Body); err != nil {
				return err
			}
			if err := gw.Close(); err != nil {
				return err
			}

			res.SetBody(buf.Bytes())
			res.Header.Set("Content-Encoding", "gzip")
			return nil
		}
	}
}

func appendVary(res *loom.Response, name string) {
	if res.Header.HasToken("Vary", "*") {
		return
	}
	if res.Header.HasToken("Vary", name) {
		return
	}
	if existing := res.Header.Get("Vary"); existing != "" {
		res.Header.Set("Vary", existing+", "+name)
		return
	}
	res.Header.Set("Vary", name)
}

func mimeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if len(contentType) >= len(m) && contentType[:len(m)] == m {
			return true
		}
	}
	return false
}
