package loom

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ETagConfig configures the ETag middleware.
type ETagConfig struct {
	Weak bool // use weak ETags
}

// ETag returns middleware that handles conditional requests. After the
// chain stages its response, the middleware hashes the staged body, sets
// the ETag header, and rewrites the reply to 304 when If-None-Match hits.
// It applies to GET and HEAD with a 2xx buffered body; streamed bodies are
// passed through untouched since hashing would drain them.
func ETag(cfg ...ETagConfig) Middleware {
	conf := ETagConfig{}
	if len(cfg) > 0 {
		conf = cfg[0]
	}

	return func(c *Context, next Next) error {
		if c.Method() != http.MethodGet && c.Method() != http.MethodHead {
			return next()
		}

		if err := next(); err != nil {
			return err
		}

		status := c.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status < 200 || status >= 300 || c.resp.stream != nil {
			return nil
		}

		hash := sha256.Sum256(c.resp.body)
		etag := `"` + hex.EncodeToString(hash[:8]) + `"`
		if conf.Weak {
			etag = "W/" + etag
		}

		if err := c.SetHeader("ETag", etag); err != nil {
			return err
		}

		if match := c.Header("If-None-Match"); match != "" {
			if strings.Contains(match, etag) {
				c.resp.status = http.StatusNotModified
				c.resp.body = nil
				return nil
			}
		}

		if match := c.Header("If-Match"); match != "" {
			if !strings.Contains(match, etag) && match != "*" {
				c.resp.status = http.StatusPreconditionFailed
				c.resp.body = nil
			}
		}

		return nil
	}
}
