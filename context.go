package loom

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Context carries one request through its chain: request accessors, bound
// path parameters, a per-request key/value store, validated facet values,
// and the staged response. A Context is created per request and must not be
// retained after the handler returns or shared across goroutines without
// external synchronization.
type Context struct {
	req    *http.Request
	writer http.ResponseWriter
	app    *App

	params    Params
	pattern   string // matched pattern source; empty on the not-found chain
	routeName string

	query     url.Values // parsed lazily
	store     map[string]any
	validated map[Facet]any

	bodyConsumed bool
	formParsed   bool
	formErr      error
	takenOver    bool

	resp response
}

func newContext(app *App, w http.ResponseWriter, r *http.Request) *Context {
	return &Context{req: r, writer: w, app: app}
}

// Request returns the underlying *http.Request.
func (c *Context) Request() *http.Request { return c.req }

// SetRequest replaces the underlying request. Middleware uses this to swap
// in a derived request, typically after WithContext on a deadline or value.
func (c *Context) SetRequest(r *http.Request) {
	c.req = r
	c.query = nil
}

// Context returns the request's context.
func (c *Context) Context() context.Context { return c.req.Context() }

// WithContext replaces the request's context for all downstream stages.
func (c *Context) WithContext(ctx context.Context) {
	c.req = c.req.WithContext(ctx)
}

func (c *Context) err() error { return c.req.Context().Err() }

// Method returns the request method.
func (c *Context) Method() string { return c.req.Method }

// Path returns the request path exactly as received. Paths are not
// normalized, so "/users" and "/users/" are distinct.
func (c *Context) Path() string { return c.req.URL.Path }

// RoutePattern returns the source text of the matched route pattern, or ""
// when the request is being served by the not-found chain.
func (c *Context) RoutePattern() string { return c.pattern }

// RouteName returns the registered name of the matched route, or "".
func (c *Context) RouteName() string { return c.routeName }

// Param returns the path parameter bound under name, or "" when absent.
// An optional parameter that was skipped is absent.
func (c *Context) Param(name string) string { return c.params.Get(name) }

// ParamLookup returns the path parameter bound under name and whether it
// was bound at all.
func (c *Context) ParamLookup(name string) (string, bool) { return c.params.Lookup(name) }

// Params returns all bound path parameters.
func (c *Context) Params() Params { return c.params }

// Query returns the first value of the named query parameter, or "".
func (c *Context) Query(name string) string { return c.queryValues().Get(name) }

// QueryDefault returns the first value of the named query parameter, or def
// when the parameter is absent or empty.
func (c *Context) QueryDefault(name, def string) string {
	if v := c.queryValues().Get(name); v != "" {
		return v
	}
	return def
}

// QueryValues returns every value of the named query parameter.
func (c *Context) QueryValues(name string) []string {
	return c.queryValues()[name]
}

func (c *Context) queryValues() url.Values {
	if c.query == nil {
		c.query = c.req.URL.Query()
	}
	return c.query
}

// Header returns the first request header value for key, or "".
func (c *Context) Header(key string) string { return c.req.Header.Get(key) }

// Headers returns the request header map.
func (c *Context) Headers() http.Header { return c.req.Header }

// Cookie returns the named request cookie.
func (c *Context) Cookie(name string) (*http.Cookie, error) { return c.req.Cookie(name) }

// Body reads and returns the whole request body. The body is consumable
// exactly once: a second call, or a call after BodyStream, returns
// ErrBodyConsumed.
func (c *Context) Body() ([]byte, error) {
	if c.bodyConsumed {
		return nil, ErrBodyConsumed
	}
	c.bodyConsumed = true
	defer c.req.Body.Close() //nolint:errcheck // best-effort close after full read
	return io.ReadAll(c.req.Body)
}

// BodyStream returns the raw request body for streaming reads. It consumes
// the body: any later Body or BodyStream call returns ErrBodyConsumed. The
// caller owns closing the returned stream.
func (c *Context) BodyStream() (io.ReadCloser, error) {
	if c.bodyConsumed {
		return nil, ErrBodyConsumed
	}
	c.bodyConsumed = true
	return c.req.Body, nil
}

// Set stores a value under key for later stages of the same request.
// Writing an existing key replaces the previous value.
func (c *Context) Set(key string, value any) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

// Get returns the value stored under key and whether it is present.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.store[key]
	return v, ok
}

// Stored returns the value stored under key when it is present and of type
// T. It is the typed companion of Get.
func Stored[T any](c *Context, key string) (T, bool) {
	var zero T
	v, ok := c.store[key]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func (c *Context) setValidated(f Facet, v any) {
	if c.validated == nil {
		c.validated = make(map[Facet]any)
	}
	c.validated[f] = v
}

func (c *Context) validatedValue(f Facet) (any, bool) {
	v, ok := c.validated[f]
	return v, ok
}

// Logger returns the app's logger.
func (c *Context) Logger() *slog.Logger { return c.app.logger }

// TakeOver hands the raw ResponseWriter and Request to the caller and
// detaches the staged response: nothing staged on the Context is flushed
// afterward. It is the escape hatch for protocol upgrades such as
// WebSockets and for server-sent event loops.
func (c *Context) TakeOver() (http.ResponseWriter, *http.Request) {
	c.takenOver = true
	return c.writer, c.req
}
