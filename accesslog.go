package loom

import (
	"log/slog"
	"net/http"
	"time"
)

// AccessLogConfig configures the AccessLog middleware.
type AccessLogConfig struct {
	Logger *slog.Logger               // default: the app's logger
	Skip   func(c *Context) bool      // requests to leave unlogged
	Attrs  func(c *Context) []slog.Attr // extra attributes per request
}

// AccessLog returns middleware that logs one line per request: method,
// path, matched route, staged status, latency, and body size. It reads the
// staged response after the chain returns, so it sees the status even
// though nothing has hit the wire yet.
func AccessLog(cfg ...AccessLogConfig) Middleware {
	var conf AccessLogConfig
	if len(cfg) > 0 {
		conf = cfg[0]
	}

	return func(c *Context, next Next) error {
		if conf.Skip != nil && conf.Skip(c) {
			return next()
		}

		start := time.Now()
		err := next()

		status := c.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if err != nil {
			status = statusForError(err)
		}

		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int64("size", c.resp.size()),
			slog.String("remote", c.Request().RemoteAddr),
		}
		if pattern := c.RoutePattern(); pattern != "" {
			attrs = append(attrs, slog.String("route", pattern))
		}
		if id := RequestIDFrom(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if conf.Attrs != nil {
			attrs = append(attrs, conf.Attrs(c)...)
		}

		logger := conf.Logger
		if logger == nil {
			logger = c.Logger()
		}
		logger.LogAttrs(c.Context(), slog.LevelInfo, "request", attrs...)

		return err
	}
}
