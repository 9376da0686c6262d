// Package loom is a minimal HTTP routing and middleware core for Go. It
// resolves an incoming (method, path) pair to a registered route, binds path
// parameters, and runs a composed chain of middleware, validators, and the
// handler around a per-request Context.
//
// Routes are plain pattern strings with static segments, named parameters,
// optional parameters, regex-constrained parameters, and a trailing wildcard:
//
//	app := loom.New()
//	app.Get("/users/:id", getUser)
//	app.Get("/files/:name{[a-z0-9-]+}", getFile)
//	app.Get("/archive/:year?", listArchive)
//	app.Get("/static/*", serveAssets)
//
// Matching is registration-order: the first registered route whose pattern
// consumes the whole path wins. A generic route registered before a literal
// one shadows it, so register "/users/me" before "/users/:id" if both exist.
//
// Middleware takes the Context and an advance function. Code before next()
// runs outer-to-inner, code after next() unwinds inner-to-outer, and
// returning without calling next() short-circuits the chain:
//
//	app.Use("*", func(c *loom.Context, next loom.Next) error {
//	    start := time.Now()
//	    err := next()
//	    slog.Info("handled", "path", c.Path(), "in", time.Since(start))
//	    return err
//	})
//
// Validators run between route middleware and the handler, checking one
// request facet each (path, query, header, body) and parking the typed
// result on the Context:
//
//	app.Get("/search", search, loom.WithValidators(
//	    loom.Query(loom.F("q", loom.MinLength(3))),
//	))
//
// The Context buffers the response; nothing is written to the wire until
// the chain finishes, so late middleware may still adjust status and
// headers. Registration is single-threaded setup; the first request
// freezes the route table, after which matching is lock-free.
package loom
