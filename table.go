package loom

import "strings"

// route is one registered entry: the methods and pattern it answers for,
// plus its route-scoped middleware, validators, and handler.
type route struct {
	methods    []string // canonical method names; nil answers every method
	pattern    *RoutePattern
	name       string
	middleware []Middleware
	validators []Validator
	handler    Handler

	// tail is the route-local stage suffix (route middleware, validators,
	// handler), assembled once when the app freezes.
	tail []stage
}

func (r *route) allowsMethod(method string) bool {
	if r.methods == nil {
		return true
	}
	for _, m := range r.methods {
		if m == method {
			return true
		}
	}
	return false
}

// routeTable holds routes in registration order and resolves requests by a
// linear scan: the first route whose method set and pattern both accept the
// request wins. Earlier routes therefore shadow later ones on overlapping
// patterns, which makes precedence something the caller reads straight off
// the registration sequence.
type routeTable struct {
	routes []*route
}

func (t *routeTable) add(r *route) {
	t.routes = append(t.routes, r)
}

// match resolves method and path against the table. params is reset before
// each candidate so bindings from failed candidates never leak into the
// winning match.
func (t *routeTable) match(method string, segs []string, params *Params) (*route, bool) {
	for _, r := range t.routes {
		if !r.allowsMethod(method) {
			continue
		}
		params.reset()
		if r.pattern.match(segs, params) {
			return r, true
		}
	}
	return nil, false
}

func canonicalMethods(methods []string) []string {
	if len(methods) == 0 {
		return nil
	}
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
