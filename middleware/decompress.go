package middleware

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/loomhq/loom"
)

// DecompressConfig configures the Decompress middleware.
type DecompressConfig struct {
	// Skipper, when it returns true, bypasses decompression for a
	// request.
	Skipper func(req *loom.Request) bool

	// PassThroughUnknown, when true, leaves a body whose Content-Encoding
	// names an unsupported token untouched instead of rejecting it with
	// 415.
	PassThroughUnknown bool
}

// DefaultDecompressConfig is the default Decompress middleware config.
var DefaultDecompressConfig = DecompressConfig{}

// Decompress returns a middleware that reads a request's Content-Encoding
// as a comma-separated list and applies the matching decoders (gzip,
// deflate) in reverse order before the request reaches the next handler,
// grounded on the teacher's gases/compress.go.
func Decompress() loom.Middleware {
	return DecompressWithConfig(DefaultDecompressConfig)
}

// DecompressWithConfig returns a Decompress middleware from config. See
// Decompress.
func DecompressWithConfig(config DecompressConfig) loom.Middleware {
	return func(next loom.Handler) loom.Handler {
		return func(req *loom.Request, res *loom.Response) error {
			if config.Skipper != nil && config.Skipper(req) {
				return next(req, res)
			}

			enc := req.Header.Get("Content-Encoding")
			if enc == "" || req.Body.Kind == loom.BodyNull {
				return next(req, res)
			}

			tokens := strings.Split(enc, ",")
			r := io.Reader(req.Body)

			for i := len(tokens) - 1; i >= 0; i-- {
				token := strings.TrimSpace(tokens[i])
				switch strings.ToLower(token) {
				case "gzip":
					gr, err := gzip.NewReader(r)
					if err != nil {
						return loom.NewError(loom.KindDecoderError, "loom/middleware: malformed gzip body", err)
					}
					r = gr
				case "deflate":
					r = flate.NewReader(r)
				case "identity", "":
					// no-op
				default:
					if config.PassThroughUnknown {
						return next(req, res)
					}
					res.Status = 415
					return loom.NewError(loom.KindBadRequest, "loom/middleware: unsupported Content-Encoding: "+token, nil)
				}
			}

			b, err := loom.ReadAllLimited(r, 1<<24)
			if err != nil {
				return err
			}
			buf := bytes.NewReader(b)
			req.Body = loom.SizedBody(buf, int64(buf.Len()))
			req.Header.Del("Content-Encoding")
			req.Header.Set("Content-Length", strconv.Itoa(buf.Len()))

			return next(req, res)
		}
	}
}
