package loom_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom"
	"github.com/loomhq/loom/loomtest"
)

func TestApp_ServeHTTP_basic(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Message string `json:"message"`
	}

	app := loom.New()
	app.Get("/health", func(c *loom.Context) error {
		return c.JSON(http.StatusOK, Resp{Message: "ok"})
	})

	client := loomtest.NewClient(t, app)

	resp := loomtest.Get[Resp](t, client, "/health")
	assert.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Body)
	assert.Equal(t, "ok", resp.Body.Message)
	assert.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
}

func TestApp_registrationOrderWins(t *testing.T) {
	t.Parallel()

	tag := func(v string) loom.Handler {
		return func(c *loom.Context) error {
			return c.Text(http.StatusOK, v)
		}
	}

	tests := map[string]struct {
		register func(app *loom.App)
		path     string
		want     string
	}{
		"static before param": {
			register: func(app *loom.App) {
				app.Get("/users/me", tag("static"))
				app.Get("/users/:id", tag("param"))
			},
			path: "/users/me",
			want: "static",
		},
		"param before static": {
			register: func(app *loom.App) {
				app.Get("/users/:id", tag("param"))
				app.Get("/users/me", tag("static"))
			},
			path: "/users/me",
			want: "param",
		},
		"wildcard before param": {
			register: func(app *loom.App) {
				app.Get("/files/*", tag("wildcard"))
				app.Get("/files/:name", tag("param"))
			},
			path: "/files/readme",
			want: "wildcard",
		},
		"param before wildcard": {
			register: func(app *loom.App) {
				app.Get("/files/:name", tag("param"))
				app.Get("/files/*", tag("wildcard"))
			},
			path: "/files/readme",
			want: "param",
		},
		"shadowed falls through on miss": {
			register: func(app *loom.App) {
				app.Get("/users/:id{[0-9]+}", tag("numeric"))
				app.Get("/users/:id", tag("any"))
			},
			path: "/users/abc",
			want: "any",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := loom.New()
			tc.register(app)

			srv := httptest.NewServer(app)
			t.Cleanup(srv.Close)

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() { require.NoError(t, resp.Body.Close()) }()

			body := make([]byte, 64)
			n, _ := resp.Body.Read(body)
			assert.Equal(t, tc.want, string(body[:n]))
		})
	}
}

func TestApp_methodDispatch(t *testing.T) {
	t.Parallel()

	app := loom.New()
	app.Get("/thing", func(c *loom.Context) error { return c.Text(http.StatusOK, "get") })
	app.Post("/thing", func(c *loom.Context) error { return c.Text(http.StatusOK, "post") })
	app.On([]string{"purge"}, "/thing", func(c *loom.Context) error { return c.Text(http.StatusOK, "purge") })
	app.All("/anything", func(c *loom.Context) error { return c.Text(http.StatusOK, "all") })

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	tests := map[string]struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		"get route":            {method: http.MethodGet, path: "/thing", wantStatus: http.StatusOK, wantBody: "get"},
		"post route":           {method: http.MethodPost, path: "/thing", wantStatus: http.StatusOK, wantBody: "post"},
		"custom method":        {method: "PURGE", path: "/thing", wantStatus: http.StatusOK, wantBody: "purge"},
		"unregistered method":  {method: http.MethodDelete, path: "/thing", wantStatus: http.StatusNotFound},
		"all matches get":      {method: http.MethodGet, path: "/anything", wantStatus: http.StatusOK, wantBody: "all"},
		"all matches delete":   {method: http.MethodDelete, path: "/anything", wantStatus: http.StatusOK, wantBody: "all"},
		"all matches custom":   {method: "PURGE", path: "/anything", wantStatus: http.StatusOK, wantBody: "all"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req, err := http.NewRequestWithContext(context.Background(), tc.method, srv.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() { require.NoError(t, resp.Body.Close()) }()

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			if tc.wantBody != "" {
				body := make([]byte, 64)
				n, _ := resp.Body.Read(body)
				assert.Equal(t, tc.wantBody, string(body[:n]))
			}
		})
	}
}

func TestApp_trailingSlashRoutesAreDistinct(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Which string `json:"which"`
	}

	app := loom.New()
	app.Get("/users", func(c *loom.Context) error { return c.JSON(http.StatusOK, Resp{Which: "bare"}) })
	app.Get("/users/", func(c *loom.Context) error { return c.JSON(http.StatusOK, Resp{Which: "slashed"}) })

	client := loomtest.NewClient(t, app)

	bare := loomtest.Get[Resp](t, client, "/users")
	require.NotNil(t, bare.Body)
	assert.Equal(t, "bare", bare.Body.Which)

	slashed := loomtest.Get[Resp](t, client, "/users/")
	require.NotNil(t, slashed.Body)
	assert.Equal(t, "slashed", slashed.Body.Which)
}

func TestApp_notFound_problemShape(t *testing.T) {
	t.Parallel()

	app := loom.New()
	app.Get("/known", func(c *loom.Context) error { return c.NoContent() })

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/missing", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var problem loom.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "about:blank", problem.Type)
	assert.Equal(t, "Not Found", problem.Title)
	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, "no route matches the request path", problem.Detail)
}

func TestApp_notFound_custom(t *testing.T) {
	t.Parallel()

	app := loom.New(loom.WithNotFound(func(c *loom.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"oops": c.Path()})
	}))

	client := loomtest.NewClient(t, app)

	resp := loomtest.Get[map[string]string](t, client, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	require.NotNil(t, resp.Body)
	assert.Equal(t, "/nope", (*resp.Body)["oops"])
}

func TestApp_scopedMiddleware_segmentBoundary(t *testing.T) {
	t.Parallel()

	mark := func(header string) loom.Middleware {
		return func(c *loom.Context, next loom.Next) error {
			if err := c.SetHeader(header, "1"); err != nil {
				return err
			}
			return next()
		}
	}

	app := loom.New()
	app.Use("*", mark("X-Global"))
	app.Use("/admin", mark("X-Admin"))
	app.Use("/", mark("X-Root"))

	ok := func(c *loom.Context) error { return c.NoContent() }
	app.Get("/admin", ok)
	app.Get("/admin/users", ok)
	app.Get("/administrator", ok)
	app.Get("/public", ok)

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	tests := map[string]struct {
		path      string
		wantAdmin bool
	}{
		"prefix itself":        {path: "/admin", wantAdmin: true},
		"inside prefix":        {path: "/admin/users", wantAdmin: true},
		"shared text boundary": {path: "/administrator", wantAdmin: false},
		"outside prefix":       {path: "/public", wantAdmin: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() { require.NoError(t, resp.Body.Close()) }()

			assert.Equal(t, "1", resp.Header.Get("X-Global"))
			assert.Equal(t, "1", resp.Header.Get("X-Root"))
			if tc.wantAdmin {
				assert.Equal(t, "1", resp.Header.Get("X-Admin"))
			} else {
				assert.Empty(t, resp.Header.Get("X-Admin"))
			}
		})
	}
}

func TestApp_notFound_runsGlobalButNotScoped(t *testing.T) {
	t.Parallel()

	mark := func(header string) loom.Middleware {
		return func(c *loom.Context, next loom.Next) error {
			if err := c.SetHeader(header, "1"); err != nil {
				return err
			}
			return next()
		}
	}

	app := loom.New()
	app.Use("*", mark("X-Global"))
	app.Use("/admin", mark("X-Admin"))

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/admin/missing", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Global"))
	assert.Empty(t, resp.Header.Get("X-Admin"))
}

func TestApp_mount(t *testing.T) {
	t.Parallel()

	sub := loom.New()
	sub.Use("*", func(c *loom.Context, next loom.Next) error {
		if err := c.SetHeader("X-Sub", "1"); err != nil {
			return err
		}
		return next()
	})
	sub.Get("/users/:id", func(c *loom.Context) error {
		return c.Text(http.StatusOK, c.Param("id"))
	})

	app := loom.New()
	app.Get("/other", func(c *loom.Context) error { return c.NoContent() })
	app.Route("/v1", sub)

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	t.Run("mounted route", func(t *testing.T) {
		t.Parallel()

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/v1/users/42", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { require.NoError(t, resp.Body.Close()) }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("X-Sub"))

		body := make([]byte, 8)
		n, _ := resp.Body.Read(body)
		assert.Equal(t, "42", string(body[:n]))
	})

	t.Run("sub global stays inside prefix", func(t *testing.T) {
		t.Parallel()

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/other", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { require.NoError(t, resp.Body.Close()) }()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Sub"))
	})

	t.Run("unmounted path is not found", func(t *testing.T) {
		t.Parallel()

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/users/42", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { require.NoError(t, resp.Body.Close()) }()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestApp_mountAtRoot(t *testing.T) {
	t.Parallel()

	sub := loom.New()
	sub.Get("/ping", func(c *loom.Context) error { return c.Text(http.StatusOK, "pong") })

	app := loom.New()
	app.Route("/", sub)

	client := loomtest.NewClient(t, app)

	resp := loomtest.Get[string](t, client, "/ping")
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestApp_routeIdentity(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Pattern string `json:"pattern"`
		Name    string `json:"name"`
	}

	app := loom.New()
	app.Get("/users/:id", func(c *loom.Context) error {
		return c.JSON(http.StatusOK, Resp{Pattern: c.RoutePattern(), Name: c.RouteName()})
	}, loom.WithName("users.get"))

	client := loomtest.NewClient(t, app)

	resp := loomtest.Get[Resp](t, client, "/users/9")
	require.NotNil(t, resp.Body)
	assert.Equal(t, "/users/:id", resp.Body.Pattern)
	assert.Equal(t, "users.get", resp.Body.Name)
}

func TestApp_registrationPanics(t *testing.T) {
	t.Parallel()

	t.Run("nil handler", func(t *testing.T) {
		t.Parallel()

		app := loom.New()
		assert.PanicsWithError(t, `loom: nil handler for "/x"`, func() {
			app.Get("/x", nil)
		})
	})

	t.Run("invalid pattern", func(t *testing.T) {
		t.Parallel()

		app := loom.New()
		assert.Panics(t, func() {
			app.Get("no-slash", func(c *loom.Context) error { return nil })
		})
	})

	t.Run("no methods", func(t *testing.T) {
		t.Parallel()

		app := loom.New()
		assert.Panics(t, func() {
			app.On(nil, "/x", func(c *loom.Context) error { return nil })
		})
	})

	t.Run("duplicate validator facet", func(t *testing.T) {
		t.Parallel()

		app := loom.New()
		assert.Panics(t, func() {
			app.Get("/x", func(c *loom.Context) error { return nil },
				loom.WithValidators(
					loom.Query(loom.F("a")),
					loom.Query(loom.F("b")),
				),
			)
		})
	})

	t.Run("scope with param marker", func(t *testing.T) {
		t.Parallel()

		app := loom.New()
		assert.Panics(t, func() {
			app.Use("/users/:id", func(c *loom.Context, next loom.Next) error { return next() })
		})
	})

	t.Run("scope without slash", func(t *testing.T) {
		t.Parallel()

		app := loom.New()
		assert.Panics(t, func() {
			app.Use("admin", func(c *loom.Context, next loom.Next) error { return next() })
		})
	})
}

func TestApp_registrationAfterServePanics(t *testing.T) {
	t.Parallel()

	app := loom.New()
	app.Get("/x", func(c *loom.Context) error { return c.NoContent() })

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.PanicsWithError(t, "loom: registration after the app started serving", func() {
		app.Get("/y", func(c *loom.Context) error { return nil })
	})
	assert.Panics(t, func() {
		app.Use("*", func(c *loom.Context, next loom.Next) error { return next() })
	})
}
