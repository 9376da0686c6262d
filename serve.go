package loom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ServeHTTP implements http.Handler. The first request freezes the app;
// after that dispatch is lock-free: match the route table in registration
// order, assemble the chain, run it, hand any error to the error terminal,
// and flush the staged response exactly once.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.freezeOnce.Do(a.freeze)

	c := newContext(a, w, r)
	segs := splitPath(r.URL.Path)

	var stages []stage
	if rt, ok := a.table.match(r.Method, segs, &c.params); ok {
		c.pattern = rt.pattern.raw
		c.routeName = rt.name
		stages = a.assemble(segs, rt)
	} else {
		c.params.reset()
		stages = a.assembleNotFound()
	}

	if err := runChain(c, stages); err != nil {
		a.fail(c, err)
	}
	if err := c.finalize(); err != nil {
		a.logger.Error("flush response",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// assemble builds the stage sequence for a matched route: global middleware,
// then scoped middleware whose prefix covers the request path, then the
// route's own tail. Each group keeps registration order.
func (a *App) assemble(segs []string, rt *route) []stage {
	n := len(a.globalStages) + len(rt.tail)
	var covering []*scopedUse
	for _, u := range a.scoped {
		if u.covers(segs) {
			covering = append(covering, u)
			n += len(u.stages)
		}
	}

	stages := make([]stage, 0, n)
	stages = append(stages, a.globalStages...)
	for _, u := range covering {
		stages = append(stages, u.stages...)
	}
	return append(stages, rt.tail...)
}

// assembleNotFound builds the chain for unmatched requests: global
// middleware only, then the not-found handler. Scoped middleware stays out
// so a typo'd path under /admin does not run admin-only middleware.
func (a *App) assembleNotFound() []stage {
	stages := make([]stage, 0, len(a.globalStages)+1)
	stages = append(stages, a.globalStages...)
	return append(stages, stage{name: "notFound", run: func(c *Context, _ Next) error {
		return a.notFound(c)
	}})
}

// fail is the error terminal. It maps the chain error to a problem
// response, logs server-side faults, and stages the reply, delegating to a
// custom error handler when one is set. It runs once per request; a panic
// inside a custom handler falls back to the built-in problem response.
func (a *App) fail(c *Context, err error) {
	p := a.problemFor(err)

	var he *HandlerError
	switch {
	case errors.As(err, &he):
		a.logger.Error("panic recovered in chain",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("recovered", he.Recovered),
			slog.String("stack", string(he.Stack)),
		)
	case p.Status >= http.StatusInternalServerError:
		a.logger.Error("request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	case p.Status == StatusClientClosedRequest:
		a.logger.Debug("request canceled",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
		)
	}

	if a.errh != nil {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("panic in error handler", slog.Any("recovered", rec))
				a.stageProblem(c, p)
			}
		}()
		c.resp.reset()
		a.errh(c, err)
		return
	}
	a.stageProblem(c, p)
}

// problemFor maps a chain error to the problem response it produces.
// Cancellation maps to 499, deadline expiry to 503, validation failures to
// a structured 400. Server-fault detail text is withheld unless debug is
// enabled.
func (a *App) problemFor(err error) *ProblemDetail {
	switch {
	case errors.Is(err, context.Canceled):
		return &ProblemDetail{
			Type:   "about:blank",
			Title:  "Client Closed Request",
			Status: StatusClientClosedRequest,
			Detail: "request canceled by the client",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(http.StatusServiceUnavailable),
			Status: http.StatusServiceUnavailable,
			Detail: "request deadline exceeded",
		}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return &ProblemDetail{
			Type:   "about:blank",
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("%d constraint violation(s)", len(ve.Fields)),
			Facet:  ve.Facet,
			Errors: ve.Fields,
		}
	}

	var pd *ProblemDetail
	if errors.As(err, &pd) {
		if pd.Status == 0 {
			pd.Status = http.StatusInternalServerError
		}
		return pd
	}

	status := statusForError(err)
	detail := err.Error()
	if status >= http.StatusInternalServerError && !a.debug {
		detail = "an unexpected error occurred"
	}
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// statusForError maps a chain error to the status its problem response will
// carry, without building the body.
func statusForError(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return ErrorStatus(err)
}

// stageProblem stages p as an RFC 9457 problem response, replacing whatever
// the chain had staged.
func (a *App) stageProblem(c *Context, p *ProblemDetail) {
	c.resp.reset()
	b, err := json.Marshal(p)
	if err != nil {
		c.resp.status = http.StatusInternalServerError
		return
	}
	c.resp.headerMap().Set("Content-Type", "application/problem+json")
	c.resp.status = p.Status
	c.resp.body = b
}

// WrapHTTP adapts a plain http.Handler into a Handler. The wrapped handler
// takes over the connection, so nothing staged on the Context is flushed
// for it; it owns the response entirely.
func WrapHTTP(h http.Handler) Handler {
	return func(c *Context) error {
		w, r := c.TakeOver()
		h.ServeHTTP(w, r)
		return nil
	}
}

// ListenAndServe starts an HTTP server on addr serving the app. It blocks
// until the context is cancelled, then shuts down gracefully.
func (a *App) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
