package loom

// connectInfoExtractor extracts the Request's ConnectInfo.
type connectInfoExtractor struct{}

// ConnectInfoExtractor extracts the local/remote endpoint pair of the
// connection a Request arrived on.
var ConnectInfoExtractor Extractor[ConnectInfo] = connectInfoExtractor{}

func (connectInfoExtractor) FromRequest(req *Request) (ConnectInfo, error) {
	return req.Conn, nil
}

// pathInfoExtractor extracts the Request's matched PathInfo.
type pathInfoExtractor struct{}

// PathInfoExtractor extracts the matched route pattern, concrete path, and
// captured path parameters.
var PathInfoExtractor Extractor[PathInfo] = pathInfoExtractor{}

func (pathInfoExtractor) FromRequest(req *Request) (PathInfo, error) {
	return req.PathInfo, nil
}

// queryMapExtractor extracts the first-value-per-key query map.
type queryMapExtractor struct{}

// QueryMapExtractor extracts the request's query string as a
// first-value-per-key map.
var QueryMapExtractor Extractor[map[string]string] = queryMapExtractor{}

func (queryMapExtractor) FromRequest(req *Request) (map[string]string, error) {
	return req.Query(), nil
}

// headerMapExtractor extracts the request's full header map (every name
// and every value, in insertion order).
type headerMapExtractor struct{}

// HeaderMapExtractor extracts the request's headers.
var HeaderMapExtractor Extractor[*Header] = headerMapExtractor{}

func (headerMapExtractor) FromRequest(req *Request) (*Header, error) {
	return req.Header, nil
}

// methodExtractor extracts the request method.
type methodExtractor struct{}

// MethodExtractor extracts the request's method.
var MethodExtractor Extractor[string] = methodExtractor{}

func (methodExtractor) FromRequest(req *Request) (string, error) {
	return req.Method, nil
}

// versionExtractor extracts the request's protocol version.
type versionExtractor struct{}

// VersionExtractor extracts the request's protocol version string.
var VersionExtractor Extractor[string] = versionExtractor{}

func (versionExtractor) FromRequest(req *Request) (string, error) {
	return req.Version, nil
}

// StringExtractor drains the request body (bounded by MaxBytes) and
// returns it as a string.
type StringExtractor struct {
	MaxBytes int64
}

// FromRequest implements Extractor.
func (e StringExtractor) FromRequest(req *Request) (string, error) {
	b, err := ReadAllLimited(req.Body, e.maxBytes())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e StringExtractor) maxBytes() int64 {
	if e.MaxBytes > 0 {
		return e.MaxBytes
	}
	return 1 << 20
}

// BytesExtractor drains the request body (bounded by MaxBytes) and
// returns the raw bytes.
type BytesExtractor struct {
	MaxBytes int64
}

// FromRequest implements Extractor.
func (e BytesExtractor) FromRequest(req *Request) ([]byte, error) {
	return ReadAllLimited(req.Body, e.maxBytes())
}

func (e BytesExtractor) maxBytes() int64 {
	if e.MaxBytes > 0 {
		return e.MaxBytes
	}
	return 1 << 20
}
