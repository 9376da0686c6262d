package loom

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"sync"
)

// CompressConfig configures the Compress middleware.
type CompressConfig struct {
	Level   int      // gzip level (1-9, default: 5)
	MinSize int      // minimum staged body size to compress (default: 1024)
	Types   []string // content types to compress (default: application/json, text/*)
}

// Compress returns middleware that gzip-compresses the staged response
// body after the chain runs, when the client accepts gzip, the content
// type qualifies, and the body is large enough to be worth it. Streamed
// bodies and already-encoded responses are passed through.
func Compress(cfg ...CompressConfig) Middleware {
	conf := CompressConfig{
		Level:   5,
		MinSize: 1024,
		Types:   []string{"application/json", "text/"},
	}
	if len(cfg) > 0 {
		if cfg[0].Level > 0 {
			conf.Level = cfg[0].Level
		}
		if cfg[0].MinSize > 0 {
			conf.MinSize = cfg[0].MinSize
		}
		if len(cfg[0].Types) > 0 {
			conf.Types = cfg[0].Types
		}
	}

	pool := &sync.Pool{
		New: func() any {
			gz, _ := gzip.NewWriterLevel(io.Discard, conf.Level) //nolint:errcheck // level is pre-validated
			return gz
		},
	}

	return func(c *Context, next Next) error {
		if !strings.Contains(c.Header("Accept-Encoding"), "gzip") {
			return next()
		}

		if err := c.AddHeader("Vary", "Accept-Encoding"); err != nil {
			return err
		}
		if err := next(); err != nil {
			return err
		}

		if c.resp.stream != nil || len(c.resp.body) < conf.MinSize {
			return nil
		}
		h := c.ResponseHeader()
		if h.Get("Content-Encoding") != "" {
			return nil
		}
		if !compressibleType(h.Get("Content-Type"), conf.Types) {
			return nil
		}

		gz := pool.Get().(*gzip.Writer) //nolint:errcheck,forcetypeassert // pool.New always returns *gzip.Writer
		buf := &bytes.Buffer{}
		gz.Reset(buf)
		if _, err := gz.Write(c.resp.body); err != nil {
			pool.Put(gz)
			return err
		}
		if err := gz.Close(); err != nil {
			pool.Put(gz)
			return err
		}
		pool.Put(gz)

		c.resp.body = buf.Bytes()
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		return nil
	}
}

func compressibleType(contentType string, types []string) bool {
	// Skip SSE and anything without a declared type.
	if contentType == "" || strings.Contains(contentType, "event-stream") {
		return false
	}
	for _, t := range types {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
