package loom

import (
	"bytes"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// minifier minifies response/asset bodies by MIME type, grounded on the
// teacher's minifier.go, ported from tdewolff/minify to its v2 module.
type minifier struct {
	m *minify.M
}

func newMinifier() *minifier {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("text/xml", xml.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return &minifier{m: m}
}

// minifierSingleton is the package-wide minifier instance, mirroring the
// teacher's minifierSingleton.
var minifierSingleton = newMinifier()

// Minify returns a Middleware that minifies the response body when its
// Content-Type (stripped of any ";..." suffix) is in mimeTypes, using
// minifierSingleton. An empty mimeTypes list minifies nothing.
func Minify(mimeTypes ...string) Middleware {
	allowed := make(map[string]bool, len(mimeTypes))
	for _, m := range mimeTypes {
		allowed[m] = true
	}

	return func(next Handler) Handler {
		return func(req *Request, res *Response) error {
			if err := next(req, res); err != nil {
				return err
			}
			if res.Body.Kind == BodyNull || len(allowed) == 0 {
				return nil
			}

			ct := res.Header.Get("Content-Type")
			mt := ct
			if i := strings.IndexByte(ct, ';'); i >= 0 {
				mt = strings.TrimSpace(ct[:i])
			}
			if !allowed[mt] {
				return nil
			}

			b, err := ReadAllLimited(res.Body, 1<<24)
			if err != nil {
				return err
			}
			minified, err := minifierSingleton.minify(mt, b)
			if err != nil {
				return err
			}
			res.SetBody(minified)
			return nil
		}
	}
}

// minify minifies b according to mimeType, stripping any ";charset=..."
// suffix before dispatch. An unregistered MIME type is returned unchanged.
func (mi *minifier) minify(mimeType string, b []byte) ([]byte, error) {
	if ss := strings.Split(mimeType, ";"); len(ss) > 1 {
		mimeType = strings.TrimSpace(ss[0])
	}
	buf := &bytes.Buffer{}
	if err := mi.m.Minify(mimeType, buf, bytes.NewReader(b)); err != nil {
		if err == minify.ErrNotExist {
			return b, nil
		}
		return nil, NewError(KindInternal, "loom: minification failed", err)
	}
	return buf.Bytes(), nil
}
