package middleware

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/loomhq/loom"
)

// DeflateConfig configures the Deflate middleware.
type DeflateConfig struct {
	// Skipper, when it returns true, bypasses compression for a request.
	Skipper func(req *loom.Request) bool

	// Level is the compression level passed to compress/flate.
	// Optional. Default value: flate.DefaultCompression.
	Level int

	// MIMETypes restricts compression the same way GzipConfig.MIMETypes
	// does.
	MIMETypes []string
}

// DefaultDeflateConfig is the default Deflate middleware config.
var DefaultDeflateConfig = DeflateConfig{
	Level: flate.DefaultCompression,
}

// Deflate returns a middleware that compresses the response body with
// DEFLATE when the client's Accept-Encoding lists it, the sibling of
// Gzip grounded on the same gases/gzip.go shape.
func Deflate() loom.Middleware {
	return DeflateWithConfig(DefaultDeflateConfig)
}

// DeflateWithConfig returns a Deflate middleware from config. See Deflate.
func DeflateWithConfig(config DeflateConfig) loom.Middleware {
	if config.Level == 0 {
		config.Level = DefaultDeflateConfig.Level
	}

	return func(next loom.Handler) loom.Handler {
		return func(req *loom.Request, res *loom.Response) error {
			appendVary(res, "Accept-Encoding")

			if config.Skipper != nil && config.Skipper(req) {
				return next(req, res)
			}
			if !req.Header.HasToken("Accept-Encoding", "deflate") {
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
			fw, err := flate.NewWriter(&buf, config.Level)
			if err != nil {
				return err
			}
			if _, err := io.Copy(fw, res.Body); err != nil {
				return err
			}
			if err := fw.Close(); err != nil {
				return err
			}

			res.SetBody(buf.Bytes())
			res.Header.Set("Content-Encoding", "deflate")
			return nil
		}
	}
}
