package loom

import (
	"fmt"
	"net/http"
)

// RouteOption configures a single route at registration.
type RouteOption func(*route)

// WithMiddleware attaches middleware to the route. Route middleware runs
// after global and scoped middleware and before the route's validators.
func WithMiddleware(mw ...Middleware) RouteOption {
	return func(r *route) {
		r.middleware = append(r.middleware, mw...)
	}
}

// WithValidators attaches validators to the route. They run in the given
// order after all middleware and before the handler; declaring two
// validators for the same facet panics at registration.
func WithValidators(vs ...Validator) RouteOption {
	return func(r *route) {
		r.validators = append(r.validators, vs...)
	}
}

// WithName names the route for introspection and instrumentation labels.
func WithName(name string) RouteOption {
	return func(r *route) {
		r.name = name
	}
}

// Get registers a handler for GET requests on pattern. An invalid pattern
// panics with a *PatternError, as do Post, Put, Patch, Delete, All, and On.
func (a *App) Get(pattern string, h Handler, opts ...RouteOption) {
	a.addRoute([]string{http.MethodGet}, pattern, h, opts)
}

// Post registers a handler for POST requests on pattern.
func (a *App) Post(pattern string, h Handler, opts ...RouteOption) {
	a.addRoute([]string{http.MethodPost}, pattern, h, opts)
}

// Put registers a handler for PUT requests on pattern.
func (a *App) Put(pattern string, h Handler, opts ...RouteOption) {
	a.addRoute([]string{http.MethodPut}, pattern, h, opts)
}

// Patch registers a handler for PATCH requests on pattern.
func (a *App) Patch(pattern string, h Handler, opts ...RouteOption) {
	a.addRoute([]string{http.MethodPatch}, pattern, h, opts)
}

// Delete registers a handler for DELETE requests on pattern.
func (a *App) Delete(pattern string, h Handler, opts ...RouteOption) {
	a.addRoute([]string{http.MethodDelete}, pattern, h, opts)
}

// All registers a handler answering every method on pattern.
func (a *App) All(pattern string, h Handler, opts ...RouteOption) {
	a.addRoute(nil, pattern, h, opts)
}

// On registers a handler for an explicit method set on pattern. Methods are
// canonicalized to upper case.
func (a *App) On(methods []string, pattern string, h Handler, opts ...RouteOption) {
	if len(canonicalMethods(methods)) == 0 {
		panic(fmt.Errorf("loom: no methods for %q; use All for every method", pattern))
	}
	a.addRoute(methods, pattern, h, opts)
}
