package loom

// Test-only exports for internal functions.
var (
	SplitPath          = splitPath
	CanonicalMethods   = canonicalMethods
	StatusForError     = statusForError
	MustCompilePattern = mustCompilePattern
)

// MatchPath runs the matcher against a request path and returns the bound
// parameters for external tests.
func MatchPath(p *RoutePattern, path string) (map[string]string, bool) {
	var params Params
	if !p.match(splitPath(path), &params) {
		return nil, false
	}
	return params.Map(), true
}
