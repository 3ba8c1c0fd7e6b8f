package loom

import (
	"fmt"
	"io/ioutil"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/aofei/mimesniffer"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// AssetCache is a binary asset file manager that holds file contents in
// memory to reduce disk I/O, grounded on the teacher's coffer.go: a
// fastcache-backed content store keyed by an xxhash digest, invalidated
// by an fsnotify watcher on the underlying file.
type AssetCache struct {
	once    sync.Once
	maxMem  int
	cache   *fastcache.Cache
	assets  sync.Map // path -> *cachedAsset
	watcher *fsnotify.Watcher
}

type cachedAsset struct {
	path     string
	modTime  time.Time
	mimeType string
	checksum uint64
	size     int64
}

// NewAssetCache returns an AssetCache backed by up to maxMemoryBytes of
// in-memory cache.
func NewAssetCache(maxMemoryBytes int) (*AssetCache, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, NewError(KindInternal, "loom: failed to start asset watcher", err)
	}
	c := &AssetCache{maxMem: maxMemoryBytes, watcher: w}
	go c.watch()
	return c, nil
}

func (c *AssetCache) watch() {
	for {
		select {
		case e, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.assets.Delete(e.Name)
		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the cache's filesystem watcher.
func (c *AssetCache) Close() error {
	return c.watcher.Close()
}

func (c *AssetCache) load(path string) (*cachedAsset, error) {
	c.once.Do(func() { c.cache = fastcache.New(c.maxMem) })

	if a, ok := c.assets.Load(path); ok {
		return a.(*cachedAsset), nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = mimesniffer.Sniff(b)
	}

	sum := xxhash.Sum64(b)
	a := &cachedAsset{path: path, modTime: fi.ModTime(), mimeType: mt, checksum: sum, size: int64(len(b))}

	key := make([]byte, 8)
	putUint64(key, sum)
	c.cache.Set(key, b)

	if err := c.watcher.Add(path); err != nil {
		return nil, err
	}
	c.assets.Store(path, a)
	return a, nil
}

func (c *AssetCache) content(a *cachedAsset) []byte {
	key := make([]byte, 8)
	putUint64(key, a.checksum)
	return c.cache.Get(nil, key)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

// FileServer serves files rooted at Root, supporting Range, If-None-Match
// and If-Modified-Since per RFC 7232/7233, content-type sniffing via
// mimesniffer, and an optional AssetCache to avoid re-reading unchanged
// files from disk.
type FileServer struct {
	// Root is the directory files are served from.
	Root string

	// Cache, if non-nil, is consulted/populated for every served file.
	Cache *AssetCache
}

// NewFileServer returns a FileServer rooted at root with no cache.
func NewFileServer(root string) *FileServer {
	return &FileServer{Root: root}
}

// ServeFile serves the file at name (relative to fs.Root) into res,
// honoring conditional and range request headers from req.
func (fs *FileServer) ServeFile(req *Request, res *Response, name string) error {
	full := filepath.Join(fs.Root, filepath.Clean("/"+name))

	var (
		etag     string
		mimeType string
		modTime  time.Time
		data     []byte
		size     int64
	)

	if fs.Cache != nil {
		a, err := fs.Cache.load(full)
		if err != nil {
			if os.IsNotExist(err) {
				return NewError(KindNotFound, "loom: asset not found", err)
			}
			return NewError(KindInternal, "loom: reading asset failed", err)
		}
		data = fs.Cache.content(a)
		etag = fmt.Sprintf(`"%x"`, a.checksum)
		mimeType = a.mimeType
		modTime = a.modTime
		size = a.size
	} else {
		fi, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				return NewError(KindNotFound, "loom: asset not found", err)
			}
			return NewError(KindInternal, "loom: stat asset failed", err)
		}
		b, err := ioutil.ReadFile(full)
		if err != nil {
			return NewError(KindInternal, "loom: reading asset failed", err)
		}
		data = b
		etag = fmt.Sprintf(`"%x"`, xxhash.Sum64(b))
		mimeType = mime.TypeByExtension(filepath.Ext(full))
		if mimeType == "" {
			mimeType = mimesniffer.Sniff(b)
		}
		modTime = fi.ModTime()
		size = fi.Size()
	}

	res.Header.Set("ETag", etag)
	res.Header.Set("Last-Modified", modTime.UTC().Format(http1123))
	if mimeType != "" {
		res.Header.Set("Content-Type", mimeType)
	}

	if inm := req.Header.Get("If-None-Match"); inm != "" && inm == etag {
		res.Status = 304
		res.Body = NullBody()
		return nil
	}
	if ims := req.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := time.Parse(http1123, ims); err == nil && !modTime.After(t.Add(time.Second)) {
			res.Status = 304
			res.Body = NullBody()
			return nil
		}
	}

	if rng := req.Header.Get("Range"); rng != "" {
		start, end, ok := parseRange(rng, size)
		if !ok {
			res.Status = 416
			res.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			res.Body = NullBody()
			return NewError(KindRangeNotSatisfiable, "loom: unsatisfiable range", nil)
		}
		res.Status = 206
		res.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		res.SetBody(data[start : end+1])
		return nil
	}

	res.SetBody(data)
	return nil
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"

// parseRange parses a single-range "bytes=start-end" header value against
// a resource of the given size.
func parseRange(spec string, size int64) (start, end int64, ok bool) {
	spec = strings.TrimPrefix(spec, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	if parts[0] == "" {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}

	e := size - 1
	if parts[1] != "" {
		e, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || e < s {
			return 0, 0, false
		}
		if e >= size {
			e = size - 1
		}
	}

	return s, e, true
}
