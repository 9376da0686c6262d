package loom

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// response is the staged reply for one request. Nothing touches the wire
// until the chain finishes and the dispatcher flushes, so middleware on the
// way out still sees and may rewrite the whole reply. After the flush the
// response is finalized and every mutation fails with ErrContextFinalized.
type response struct {
	status int
	header http.Header
	body   []byte
	stream io.Reader

	finalized bool
	wrote     int64
}

func (r *response) headerMap() http.Header {
	if r.header == nil {
		r.header = make(http.Header)
	}
	return r.header
}

// size returns the staged body length, or -1 when the body is a stream of
// unknown length.
func (r *response) size() int64 {
	if r.stream != nil {
		return -1
	}
	return int64(len(r.body))
}

// reset drops the staged status and body but keeps headers, so header state
// accumulated by middleware (CORS, security headers, cookies) survives an
// error rewrite.
func (r *response) reset() {
	r.status = 0
	r.body = nil
	r.stream = nil
}

// flush writes the staged response to w exactly once. An unset status
// becomes 200. For statuses that cannot carry a body the staged body is
// discarded.
func (r *response) flush(w http.ResponseWriter) error {
	if r.finalized {
		return nil
	}
	r.finalized = true

	h := w.Header()
	for k, vv := range r.header {
		h[k] = vv
	}

	status := r.status
	if status == 0 {
		status = http.StatusOK
	}

	if !bodyAllowedForStatus(status) {
		w.WriteHeader(status)
		return nil
	}

	if r.stream == nil && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.body)))
	}
	w.WriteHeader(status)

	if r.stream != nil {
		n, err := io.Copy(w, r.stream)
		r.wrote = n
		return err
	}
	if len(r.body) > 0 {
		n, err := w.Write(r.body)
		r.wrote = int64(n)
		return err
	}
	return nil
}

func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// Finalized reports whether the response has been flushed to the wire.
func (c *Context) Finalized() bool { return c.resp.finalized }

// Status returns the staged response status, or 0 when no stage has set one
// yet. An unset status flushes as 200.
func (c *Context) Status() int { return c.resp.status }

// SetStatus stages the response status.
func (c *Context) SetStatus(status int) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.status = status
	return nil
}

// ResponseHeader returns the staged response header map. Mutating it after
// the response is finalized has no effect on the wire.
func (c *Context) ResponseHeader() http.Header { return c.resp.headerMap() }

// SetHeader stages a response header, replacing existing values for key.
func (c *Context) SetHeader(key, value string) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.headerMap().Set(key, value)
	return nil
}

// AddHeader stages an additional value for a response header.
func (c *Context) AddHeader(key, value string) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.headerMap().Add(key, value)
	return nil
}

// DelHeader removes a staged response header.
func (c *Context) DelHeader(key string) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.headerMap().Del(key)
	return nil
}

// SetCookie stages a Set-Cookie header for ck.
func (c *Context) SetCookie(ck *http.Cookie) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	if err := ck.Valid(); err != nil {
		return fmt.Errorf("set cookie: %w", err)
	}
	c.resp.headerMap().Add("Set-Cookie", ck.String())
	return nil
}

// SetBody stages b as the response body, replacing any staged body or
// stream.
func (c *Context) SetBody(b []byte) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.body = b
	c.resp.stream = nil
	return nil
}

// SetBodyString stages s as the response body.
func (c *Context) SetBodyString(s string) error {
	return c.SetBody([]byte(s))
}

// SetBodyStream stages r as the response body. The stream is drained at
// flush time; length is unknown so the response is sent without an explicit
// Content-Length.
func (c *Context) SetBodyStream(r io.Reader) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.stream = r
	c.resp.body = nil
	return nil
}

// JSON stages a JSON response: status, application/json content type, and
// the marshaled value as body.
func (c *Context) JSON(status int, v any) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json response: %w", err)
	}
	c.resp.headerMap().Set("Content-Type", "application/json")
	c.resp.status = status
	c.resp.body = b
	c.resp.stream = nil
	return nil
}

// Text stages a plain text response.
func (c *Context) Text(status int, s string) error {
	return c.Blob(status, "text/plain; charset=utf-8", []byte(s))
}

// HTML stages an HTML response.
func (c *Context) HTML(status int, html string) error {
	return c.Blob(status, "text/html; charset=utf-8", []byte(html))
}

// Blob stages a response with an explicit content type and body.
func (c *Context) Blob(status int, contentType string, b []byte) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.headerMap().Set("Content-Type", contentType)
	c.resp.status = status
	c.resp.body = b
	c.resp.stream = nil
	return nil
}

// Stream stages a streamed response with an explicit content type.
func (c *Context) Stream(status int, contentType string, r io.Reader) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.headerMap().Set("Content-Type", contentType)
	c.resp.status = status
	c.resp.stream = r
	c.resp.body = nil
	return nil
}

// NoContent stages an empty 204 response.
func (c *Context) NoContent() error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	c.resp.status = http.StatusNoContent
	c.resp.body = nil
	c.resp.stream = nil
	return nil
}

// Redirect stages a redirect to location. status must be a 3xx code.
func (c *Context) Redirect(status int, location string) error {
	if c.resp.finalized {
		return ErrContextFinalized
	}
	if status < 300 || status > 308 {
		return fmt.Errorf("redirect status %d is not a 3xx code", status)
	}
	c.resp.headerMap().Set("Location", location)
	c.resp.status = status
	c.resp.body = nil
	c.resp.stream = nil
	return nil
}

// finalize flushes the staged response, unless the connection was taken
// over, in which case the writer belongs to the caller.
func (c *Context) finalize() error {
	if c.takenOver {
		c.resp.finalized = true
		return nil
	}
	return c.resp.flush(c.writer)
}
