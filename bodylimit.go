package loom

import "net/http"

// BodyLimit returns middleware that caps the request body at maxBytes.
// Requests declaring a larger Content-Length are rejected with 413 before
// any read; chunked bodies are capped at read time and fail with 413 when
// the cap is hit.
func BodyLimit(maxBytes int64) Middleware {
	return func(c *Context, next Next) error {
		if c.Request().ContentLength > maxBytes {
			return Error(http.StatusRequestEntityTooLarge, "request body too large")
		}
		c.req.Body = http.MaxBytesReader(c.writer, c.req.Body, maxBytes)
		return next()
	}
}
