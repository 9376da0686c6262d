package loom

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// App is the root of a loom application: the route table, scoped middleware,
// the not-found and error terminals, and configuration. It implements
// http.Handler.
//
// Registration is not safe concurrently with serving: the app freezes on its
// first request, and any registration after that panics. Build the whole
// app, then serve it.
type App struct {
	logger   *slog.Logger
	debug    bool
	encoders []Encoder

	table  routeTable
	global []Middleware
	scoped []*scopedUse

	notFound Handler
	errh     ErrorHandler

	globalStages []stage

	mu         sync.Mutex
	frozen     bool
	freezeOnce sync.Once
}

// scopedUse is middleware attached to a literal path prefix. It applies to
// every request whose path begins at the prefix on a segment boundary,
// matched or not route-wise is irrelevant: coverage is decided by the
// request path alone.
type scopedUse struct {
	prefix string
	segs   []string
	mw     []Middleware
	stages []stage // built at freeze
}

// covers reports whether the request path segments start with the prefix.
func (u *scopedUse) covers(pathSegs []string) bool {
	if len(pathSegs) < len(u.segs) {
		return false
	}
	for i, s := range u.segs {
		if pathSegs[i] != s {
			return false
		}
	}
	return true
}

// ErrorHandler turns a chain error into a staged response. It runs at most
// once per request; if it fails, a plain 500 is sent instead.
type ErrorHandler func(c *Context, err error)

// Option configures an App.
type Option func(*App)

// WithLogger sets the app's logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithDebug enables debug responses: error replies include the underlying
// error text and, for recovered panics, the stack. Do not enable it for
// untrusted clients.
func WithDebug() Option {
	return func(a *App) {
		a.debug = true
	}
}

// WithNotFound sets the handler run when no route matches. The default
// returns a 404 problem response.
func WithNotFound(h Handler) Option {
	return func(a *App) {
		a.notFound = h
	}
}

// WithErrorHandler sets a custom error handler for the app.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.errh = h
	}
}

// WithEncoders registers additional response encoders, consulted by
// Negotiate after the built-in JSON and XML ones.
func WithEncoders(enc ...Encoder) Option {
	return func(a *App) {
		a.encoders = append(a.encoders, enc...)
	}
}

// New creates an App with the given options.
func New(opts ...Option) *App {
	a := &App{
		logger:   slog.Default(),
		notFound: defaultNotFound,
		encoders: []Encoder{jsonEncoder{}, xmlEncoder{}},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultNotFound(c *Context) error {
	return Error(http.StatusNotFound, "no route matches the request path")
}

// Use attaches middleware to a path scope. The scope "*" means every
// request, including ones no route matches. Any other scope must be a
// literal rooted prefix such as "/admin"; its middleware runs for requests
// whose path starts at that prefix on a segment boundary.
//
// Chains are assembled global middleware first, then covering scoped
// middleware, each group in registration order.
func (a *App) Use(scope string, mw ...Middleware) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureOpen()

	if scope == "*" {
		a.global = append(a.global, mw...)
		return
	}
	segs, err := prefixSegments(scope)
	if err != nil {
		panic(err)
	}
	a.scoped = append(a.scoped, &scopedUse{prefix: scope, segs: segs, mw: mw})
}

// prefixSegments validates a middleware scope and splits it. Scopes are
// literal paths: parameter and wildcard markers are rejected. The root
// scope "/" is the empty prefix and covers every path.
func prefixSegments(prefix string) ([]string, error) {
	if !strings.HasPrefix(prefix, "/") {
		return nil, patternErrorf(prefix, "middleware scope must be \"*\" or begin with /")
	}
	if prefix == "/" {
		return nil, nil
	}
	segs := splitPath(prefix)
	for _, s := range segs {
		if s == "*" || strings.HasPrefix(s, ":") {
			return nil, patternErrorf(prefix, "middleware scope must be a literal path")
		}
	}
	return segs, nil
}

// NotFound replaces the not-found handler.
func (a *App) NotFound(h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureOpen()
	a.notFound = h
}

// OnError replaces the error handler.
func (a *App) OnError(h ErrorHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureOpen()
	a.errh = h
}

// Route mounts sub's routes and scoped middleware under prefix, preserving
// sub-relative order at the parent's current registration point. The
// sub-app's not-found and error handlers are not carried over; the parent's
// terminals serve the whole tree.
func (a *App) Route(prefix string, sub *App) {
	if sub == nil {
		panic(fmt.Errorf("loom: mount of nil app under %q", prefix))
	}
	if prefix != "/" {
		if _, err := prefixSegments(prefix); err != nil {
			panic(err)
		}
	}

	sub.mu.Lock()
	subGlobal := sub.global
	subScoped := sub.scoped
	subRoutes := sub.table.routes
	sub.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureOpen()

	if len(subGlobal) > 0 {
		a.mountUse(prefix, "*", subGlobal)
	}
	for _, u := range subScoped {
		a.mountUse(prefix, u.prefix, u.mw)
	}
	for _, r := range subRoutes {
		pattern := joinPrefix(prefix, r.pattern.raw)
		mounted := &route{
			methods:    r.methods,
			name:       r.name,
			middleware: r.middleware,
			validators: r.validators,
			handler:    r.handler,
			pattern:    mustCompilePattern(pattern),
		}
		a.table.add(mounted)
	}
}

// mountUse re-scopes one of a mounted app's middleware attachments.
func (a *App) mountUse(prefix, scope string, mw []Middleware) {
	switch {
	case scope == "*" && prefix == "/":
		a.global = append(a.global, mw...)
	case scope == "*":
		segs, err := prefixSegments(prefix)
		if err != nil {
			panic(err)
		}
		a.scoped = append(a.scoped, &scopedUse{prefix: prefix, segs: segs, mw: mw})
	default:
		joined := joinPrefix(prefix, scope)
		segs, err := prefixSegments(joined)
		if err != nil {
			panic(err)
		}
		a.scoped = append(a.scoped, &scopedUse{prefix: joined, segs: segs, mw: mw})
	}
}

func joinPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	return prefix + path
}

// addRoute validates and stores a route. Compile failures and conflicting
// validator facets are registration bugs, so they panic.
func (a *App) addRoute(methods []string, pattern string, h Handler, opts []RouteOption) *route {
	if h == nil {
		panic(fmt.Errorf("loom: nil handler for %q", pattern))
	}

	r := &route{
		methods: canonicalMethods(methods),
		pattern: mustCompilePattern(pattern),
		handler: h,
	}
	for _, opt := range opts {
		opt(r)
	}

	facets := make(map[Facet]struct{}, len(r.validators))
	for _, v := range r.validators {
		if _, dup := facets[v.Facet()]; dup {
			panic(fmt.Errorf("loom: route %q declares multiple %s validators", pattern, v.Facet()))
		}
		facets[v.Facet()] = struct{}{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureOpen()
	a.table.add(r)
	return r
}

func (a *App) ensureOpen() {
	if a.frozen {
		panic(fmt.Errorf("loom: registration after the app started serving"))
	}
}

// freeze makes the app immutable and assembles everything that does not
// depend on the request: global middleware stages, scoped middleware
// stages, and each route's tail of route middleware, validators, and
// handler.
func (a *App) freeze() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true

	a.globalStages = make([]stage, 0, len(a.global))
	for _, m := range a.global {
		a.globalStages = append(a.globalStages, middlewareStage(`use("*")`, m))
	}

	for _, u := range a.scoped {
		u.stages = make([]stage, 0, len(u.mw))
		for _, m := range u.mw {
			u.stages = append(u.stages, middlewareStage(fmt.Sprintf("use(%q)", u.prefix), m))
		}
	}

	for _, r := range a.table.routes {
		tail := make([]stage, 0, len(r.middleware)+len(r.validators)+1)
		for _, m := range r.middleware {
			tail = append(tail, middlewareStage(fmt.Sprintf("middleware(%s)", r.pattern.raw), m))
		}
		for _, v := range r.validators {
			tail = append(tail, validatorStage(v))
		}
		tail = append(tail, handlerStage(r.handler))
		r.tail = tail
	}
}
