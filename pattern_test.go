package loom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom"
)

func TestCompilePattern_valid(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern    string
		wantParams []string
	}{
		"root":               {pattern: "/", wantParams: nil},
		"static":             {pattern: "/users", wantParams: nil},
		"nested static":      {pattern: "/api/v1/users", wantParams: nil},
		"trailing slash":     {pattern: "/users/", wantParams: nil},
		"single param":       {pattern: "/users/:id", wantParams: []string{"id"}},
		"multiple params":    {pattern: "/users/:id/posts/:slug", wantParams: []string{"id", "slug"}},
		"optional param":     {pattern: "/search/:term?", wantParams: []string{"term"}},
		"regex param":        {pattern: "/users/:id{[0-9]+}", wantParams: []string{"id"}},
		"wildcard":           {pattern: "/files/*", wantParams: []string{"*"}},
		"bare wildcard":      {pattern: "/*", wantParams: []string{"*"}},
		"param and wildcard": {pattern: "/:tenant/files/*", wantParams: []string{"tenant", "*"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := loom.CompilePattern(tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.pattern, p.String())
			assert.Equal(t, tc.wantParams, p.ParamNames())
		})
	}
}

func TestCompilePattern_invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern    string
		wantReason string
	}{
		"not rooted":           {pattern: "users", wantReason: "must begin with /"},
		"empty":                {pattern: "", wantReason: "must begin with /"},
		"wildcard not final":   {pattern: "/files/*/meta", wantReason: "wildcard must be the final segment"},
		"nameless param":       {pattern: "/users/:", wantReason: "parameter has no name"},
		"nameless optional":    {pattern: "/users/:?", wantReason: "optional parameter has no name"},
		"nameless regex":       {pattern: "/users/:{[0-9]+}", wantReason: "regex parameter has no name"},
		"duplicate param":      {pattern: "/users/:id/posts/:id", wantReason: `duplicate parameter "id"`},
		"unterminated regex":   {pattern: "/users/:id{[0-9]+", wantReason: "unterminated regex constraint"},
		"bad regex":            {pattern: "/users/:id{[0-9}", wantReason: "does not compile"},
		"optional with regex":  {pattern: "/users/:id?{[0-9]+}", wantReason: "cannot be both optional and regex-constrained"},
		"duplicate via regex":  {pattern: "/a/:x/b/:x{[a-z]+}", wantReason: `duplicate parameter "x"`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := loom.CompilePattern(tc.pattern)
			require.Error(t, err)

			var perr *loom.PatternError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.pattern, perr.Pattern)
			assert.Contains(t, perr.Reason, tc.wantReason)
		})
	}
}

func TestRoutePattern_match(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern    string
		path       string
		wantMatch  bool
		wantParams map[string]string
	}{
		"root":                     {pattern: "/", path: "/", wantMatch: true, wantParams: map[string]string{}},
		"static hit":               {pattern: "/users", path: "/users", wantMatch: true, wantParams: map[string]string{}},
		"static miss":              {pattern: "/users", path: "/posts", wantMatch: false},
		"static is case sensitive": {pattern: "/users", path: "/Users", wantMatch: false},
		"trailing slash differs":   {pattern: "/users", path: "/users/", wantMatch: false},
		"trailing slash hit":       {pattern: "/users/", path: "/users/", wantMatch: true, wantParams: map[string]string{}},
		"doubled slash literal":    {pattern: "/a//b", path: "/a//b", wantMatch: true, wantParams: map[string]string{}},
		"doubled slash differs":    {pattern: "/a/b", path: "/a//b", wantMatch: false},
		"param binds":              {pattern: "/users/:id", path: "/users/42", wantMatch: true, wantParams: map[string]string{"id": "42"}},
		"param rejects empty":      {pattern: "/users/:id", path: "/users//", wantMatch: false},
		"param not partial":        {pattern: "/users/:id", path: "/users/42/posts", wantMatch: false},
		"two params":               {pattern: "/users/:id/posts/:slug", path: "/users/7/posts/hello", wantMatch: true, wantParams: map[string]string{"id": "7", "slug": "hello"}},
		"optional present":         {pattern: "/search/:term?", path: "/search/gopher", wantMatch: true, wantParams: map[string]string{"term": "gopher"}},
		"optional absent":          {pattern: "/search/:term?", path: "/search", wantMatch: true, wantParams: map[string]string{}},
		"optional then static":     {pattern: "/a/:x?/b", path: "/a/b", wantMatch: true, wantParams: map[string]string{}},
		"optional prefers binding": {pattern: "/a/:x?/b", path: "/a/b/b", wantMatch: true, wantParams: map[string]string{"x": "b"}},
		"optional rejects empty":   {pattern: "/search/:term?", path: "/search/", wantMatch: false},
		"regex hit":                {pattern: "/users/:id{[0-9]+}", path: "/users/123", wantMatch: true, wantParams: map[string]string{"id": "123"}},
		"regex miss":               {pattern: "/users/:id{[0-9]+}", path: "/users/abc", wantMatch: false},
		"regex is anchored":        {pattern: "/users/:id{[0-9]+}", path: "/users/12a", wantMatch: false},
		"regex alternation":        {pattern: "/files/:ext{png|jpg}", path: "/files/jpg", wantMatch: true, wantParams: map[string]string{"ext": "jpg"}},
		"wildcard remainder":       {pattern: "/files/*", path: "/files/a/b/c.txt", wantMatch: true, wantParams: map[string]string{"*": "a/b/c.txt"}},
		"wildcard empty":           {pattern: "/files/*", path: "/files/", wantMatch: true, wantParams: map[string]string{"*": ""}},
		"wildcard single":          {pattern: "/files/*", path: "/files/x", wantMatch: true, wantParams: map[string]string{"*": "x"}},
		"wildcard keeps slashes":   {pattern: "/files/*", path: "/files/a//b", wantMatch: true, wantParams: map[string]string{"*": "a//b"}},
		"wildcard needs prefix":    {pattern: "/files/*", path: "/files", wantMatch: false},
		"no decoding in matcher":   {pattern: "/files/:name", path: "/files/a%2Fb", wantMatch: true, wantParams: map[string]string{"name": "a%2Fb"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := loom.CompilePattern(tc.pattern)
			require.NoError(t, err)

			params, ok := loom.MatchPath(p, tc.path)
			require.Equal(t, tc.wantMatch, ok)
			if tc.wantMatch {
				assert.Equal(t, tc.wantParams, params)
			}
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path string
		want []string
	}{
		"root":           {path: "/", want: []string{""}},
		"single":         {path: "/users", want: []string{"users"}},
		"nested":         {path: "/a/b/c", want: []string{"a", "b", "c"}},
		"trailing slash": {path: "/users/", want: []string{"users", ""}},
		"doubled slash":  {path: "/a//b", want: []string{"a", "", "b"}},
		"not rooted":     {path: "users", want: []string{"users"}},
		"empty":          {path: "", want: []string{""}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, loom.SplitPath(tc.path))
		})
	}
}

func TestCanonicalMethods(t *testing.T) {
	t.Parallel()

	assert.Nil(t, loom.CanonicalMethods(nil))
	assert.Nil(t, loom.CanonicalMethods([]string{}))
	assert.Equal(t, []string{"GET", "POST"}, loom.CanonicalMethods([]string{"get", " post "}))
	assert.Equal(t, []string{"PURGE"}, loom.CanonicalMethods([]string{"purge"}))
	assert.Empty(t, loom.CanonicalMethods([]string{"", "  "}))
}
