package loom_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom"
)

func newETagApp(opts ...loom.ETagConfig) *loom.App {
	app := loom.New()
	app.Use("*", loom.ETag(opts...))
	app.Get("/doc", func(c *loom.Context) error {
		return c.Text(http.StatusOK, "stable content")
	})
	app.Post("/doc", func(c *loom.Context) error {
		return c.Text(http.StatusOK, "stable content")
	})
	app.Get("/stream", func(c *loom.Context) error {
		return c.Stream(http.StatusOK, "text/plain", strings.NewReader("streamed"))
	})
	app.Get("/missing-thing", func(c *loom.Context) error {
		return loom.Error(http.StatusNotFound, "gone")
	})
	return app
}

func TestETag_setsHeader(t *testing.T) {
	t.Parallel()

	app := newETagApp()

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.True(t, strings.HasPrefix(etag, `"`))
	assert.Equal(t, "stable content", rec.Body.String())
}

func TestETag_ifNoneMatchHits304(t *testing.T) {
	t.Parallel()

	app := newETagApp()

	first := httptest.NewRecorder()
	app.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/doc", nil))
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/doc", nil)
	req.Header.Set("If-None-Match", etag)

	second := httptest.NewRecorder()
	app.ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
	assert.Equal(t, etag, second.Header().Get("ETag"))
}

func TestETag_ifMatchMiss412(t *testing.T) {
	t.Parallel()

	app := newETagApp()

	req := httptest.NewRequest(http.MethodGet, "/doc", nil)
	req.Header.Set("If-Match", `"deadbeefdeadbeef"`)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestETag_weak(t *testing.T) {
	t.Parallel()

	app := newETagApp(loom.ETagConfig{Weak: true})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doc", nil))

	assert.True(t, strings.HasPrefix(rec.Header().Get("ETag"), `W/"`))
}

func TestETag_skipsNonGET(t *testing.T) {
	t.Parallel()

	app := newETagApp()

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/doc", nil))

	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestETag_skipsStreams(t *testing.T) {
	t.Parallel()

	app := newETagApp()

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "streamed", rec.Body.String())
}

func TestETag_skipsNon2xx(t *testing.T) {
	t.Parallel()

	app := newETagApp()

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing-thing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
}
