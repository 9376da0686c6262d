package loom_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom"
)

func TestApp_serveDocs(t *testing.T) {
	t.Parallel()

	app := loom.New()
	app.ServeDocs("/docs")

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "<title>API Reference</title>")
	assert.Contains(t, body, `apiDescriptionUrl="/openapi.json"`)
	assert.Contains(t, body, "elements-api")
}

func TestApp_serveDocs_customConfig(t *testing.T) {
	t.Parallel()

	app := loom.New()
	app.ServeDocs("/docs", loom.DocsConfig{Title: "Notes API", SpecURL: "/api/spec.json"})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Notes API</title>")
	assert.Contains(t, body, `apiDescriptionUrl="/api/spec.json"`)
}
