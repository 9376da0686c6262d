package loom

import (
	"regexp"
	"strings"
)

// segKind classifies one pattern segment.
type segKind uint8

const (
	segStatic   segKind = iota // literal text, compared exactly
	segParam                   // :name — binds one non-empty segment
	segOptional                // :name? — binds one segment or is skipped
	segRegex                   // :name{expr} — binds one segment matching expr
	segWildcard                // * — binds the raw remaining path, final only
)

// segment is one /-delimited unit of a compiled pattern.
type segment struct {
	kind    segKind
	literal string         // static text (segStatic)
	name    string         // parameter name (segParam, segOptional, segRegex)
	expr    string         // regex source (segRegex)
	re      *regexp.Regexp // anchored regex (segRegex)
}

// RoutePattern is a compiled route pattern. It is immutable once compiled
// and safe for concurrent matching.
type RoutePattern struct {
	raw  string
	segs []segment
}

// String returns the pattern source text.
func (p *RoutePattern) String() string { return p.raw }

// ParamNames returns the declared parameter names in declaration order.
// A wildcard contributes the name "*".
func (p *RoutePattern) ParamNames() []string {
	var names []string
	for _, s := range p.segs {
		switch s.kind {
		case segParam, segOptional, segRegex:
			names = append(names, s.name)
		case segWildcard:
			names = append(names, "*")
		case segStatic:
		}
	}
	return names
}

// CompilePattern parses a route pattern into its matchable form.
//
// Segments are classified by shape: ":name" is a parameter, ":name?" an
// optional parameter, ":name{expr}" a regex-constrained parameter, "*" the
// wildcard, anything else (including an empty segment) literal text. No
// segment is dropped, so "/users" and "/users/" compile differently and
// matching is slash-sensitive.
//
// It returns a *PatternError when the pattern is not rooted, a wildcard is
// not the final segment, a parameter name is empty or duplicated, a regex
// constraint fails to compile, or a segment is both optional and
// regex-constrained.
func CompilePattern(pattern string) (*RoutePattern, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, patternErrorf(pattern, "must begin with /")
	}

	parts := strings.Split(pattern[1:], "/")
	segs := make([]segment, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for i, part := range parts {
		last := i == len(parts)-1

		switch {
		case part == "*":
			if !last {
				return nil, patternErrorf(pattern, "wildcard must be the final segment")
			}
			segs = append(segs, segment{kind: segWildcard})

		case strings.HasPrefix(part, ":"):
			seg, err := compileParam(pattern, part)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[seg.name]; dup {
				return nil, patternErrorf(pattern, "duplicate parameter %q", seg.name)
			}
			seen[seg.name] = struct{}{}
			segs = append(segs, seg)

		default:
			segs = append(segs, segment{kind: segStatic, literal: part})
		}
	}

	return &RoutePattern{raw: pattern, segs: segs}, nil
}

// compileParam parses a single ":"-prefixed segment.
func compileParam(pattern, part string) (segment, error) {
	body := part[1:]

	if open := strings.IndexByte(body, '{'); open >= 0 {
		if !strings.HasSuffix(body, "}") {
			return segment{}, patternErrorf(pattern, "unterminated regex constraint in %q", part)
		}
		name := body[:open]
		expr := body[open+1 : len(body)-1]
		if name == "" {
			return segment{}, patternErrorf(pattern, "regex parameter has no name in %q", part)
		}
		if strings.HasSuffix(name, "?") {
			return segment{}, patternErrorf(pattern, "segment %q cannot be both optional and regex-constrained", part)
		}
		re, err := regexp.Compile("^(?:" + expr + ")$")
		if err != nil {
			return segment{}, patternErrorf(pattern, "regex constraint %q does not compile: %v", expr, err)
		}
		return segment{kind: segRegex, name: name, expr: expr, re: re}, nil
	}

	if strings.HasSuffix(body, "?") {
		name := body[:len(body)-1]
		if name == "" {
			return segment{}, patternErrorf(pattern, "optional parameter has no name in %q", part)
		}
		return segment{kind: segOptional, name: name}, nil
	}

	if body == "" {
		return segment{}, patternErrorf(pattern, "parameter has no name in %q", part)
	}
	return segment{kind: segParam, name: body}, nil
}

// mustCompilePattern backs the panicking registration path.
func mustCompilePattern(pattern string) *RoutePattern {
	p, err := CompilePattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// splitPath splits a rooted request path into segments, preserving empty
// segments so that trailing and doubled slashes stay significant.
func splitPath(path string) []string {
	if path == "" || path[0] != '/' {
		return []string{path}
	}
	return strings.Split(path[1:], "/")
}

// match reports whether the pattern consumes every segment of path, binding
// parameters into params. Parameters must bind non-empty text; an optional
// parameter prefers consuming a segment and backtracks to skipping it.
func (p *RoutePattern) match(path []string, params *Params) bool {
	return p.matchFrom(0, 0, path, params)
}

func (p *RoutePattern) matchFrom(pi, si int, path []string, params *Params) bool {
	if pi == len(p.segs) {
		return si == len(path)
	}

	seg := &p.segs[pi]
	switch seg.kind {
	case segStatic:
		if si < len(path) && path[si] == seg.literal {
			return p.matchFrom(pi+1, si+1, path, params)
		}

	case segParam:
		if si < len(path) && path[si] != "" {
			params.add(seg.name, path[si])
			if p.matchFrom(pi+1, si+1, path, params) {
				return true
			}
			params.drop()
		}

	case segRegex:
		if si < len(path) && path[si] != "" && seg.re.MatchString(path[si]) {
			params.add(seg.name, path[si])
			if p.matchFrom(pi+1, si+1, path, params) {
				return true
			}
			params.drop()
		}

	case segOptional:
		if si < len(path) && path[si] != "" {
			params.add(seg.name, path[si])
			if p.matchFrom(pi+1, si+1, path, params) {
				return true
			}
			params.drop()
		}
		return p.matchFrom(pi+1, si, path, params)

	case segWildcard:
		params.add("*", strings.Join(path[si:], "/"))
		return true
	}

	return false
}

// Params holds the path parameters bound by a match, in pattern order.
// The zero value is an empty set. Params are per-request values; they are
// never shared between requests.
type Params struct {
	names  []string
	values []string
}

// Get returns the value bound to name, or "" when absent.
func (p Params) Get(name string) string {
	v, _ := p.Lookup(name)
	return v
}

// Lookup returns the value bound to name and whether it was bound at all.
// An optional parameter that matched by skipping is absent, not empty.
func (p Params) Lookup(name string) (string, bool) {
	for i, n := range p.names {
		if n == name {
			return p.values[i], true
		}
	}
	return "", false
}

// Len returns the number of bound parameters.
func (p Params) Len() int { return len(p.names) }

// Map returns a fresh name→value map of the bound parameters.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p.names))
	for i, n := range p.names {
		m[n] = p.values[i]
	}
	return m
}

func (p *Params) add(name, value string) {
	p.names = append(p.names, name)
	p.values = append(p.values, value)
}

func (p *Params) drop() {
	p.names = p.names[:len(p.names)-1]
	p.values = p.values[:len(p.values)-1]
}

func (p *Params) reset() {
	p.names = p.names[:0]
	p.values = p.values[:0]
}
