package loom

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
)

// DocsConfig configures ServeDocs.
type DocsConfig struct {
	// Title is the page title. Defaults to "API Reference".
	Title string
	// SpecURL is the URL the viewer loads the OpenAPI document from.
	// Defaults to "/openapi.json".
	SpecURL string
}

const docsPage = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
    <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  </head>
  <body>
    <elements-api apiDescriptionUrl="{{.SpecURL}}" router="hash" layout="sidebar"></elements-api>
  </body>
</html>
`

var docsTemplate = template.Must(template.New("docs").Parse(docsPage))

// ServeDocs registers a GET route at pattern that serves an interactive API
// reference reading the app's OpenAPI document. Pair it with ServeOpenAPI
// and point SpecURL at that route.
func (a *App) ServeDocs(pattern string, cfg ...DocsConfig) {
	var conf DocsConfig
	if len(cfg) > 0 {
		conf = cfg[0]
	}
	if conf.Title == "" {
		conf.Title = "API Reference"
	}
	if conf.SpecURL == "" {
		conf.SpecURL = "/openapi.json"
	}

	// The page is static per registration; render it once.
	var page bytes.Buffer
	if err := docsTemplate.Execute(&page, conf); err != nil {
		panic(fmt.Sprintf("loom: render docs page for %q: %v", pattern, err))
	}
	body := page.String()

	a.Get(pattern, func(c *Context) error {
		return c.HTML(http.StatusOK, body)
	})
}
