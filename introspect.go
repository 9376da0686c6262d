package loom

import (
	"encoding/json"
	"io"
	"net/http"

	"gopkg.in/yaml.v3"
)

// RouteInfo describes one registered route for introspection: manifests,
// diagnostics, and instrumentation labels.
type RouteInfo struct {
	Methods []string `json:"methods" yaml:"methods"`
	Pattern string   `json:"pattern" yaml:"pattern"`
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Params  []string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Routes returns the registered routes in registration order, which is also
// their match precedence.
func (a *App) Routes() []RouteInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	infos := make([]RouteInfo, 0, len(a.table.routes))
	for _, r := range a.table.routes {
		methods := r.methods
		if methods == nil {
			methods = []string{"*"}
		}
		infos = append(infos, RouteInfo{
			Methods: methods,
			Pattern: r.pattern.raw,
			Name:    r.name,
			Params:  r.pattern.ParamNames(),
		})
	}
	return infos
}

// Lookup returns the route registered under name.
func (a *App) Lookup(name string) (RouteInfo, bool) {
	if name == "" {
		return RouteInfo{}, false
	}
	for _, info := range a.Routes() {
		if info.Name == name {
			return info, true
		}
	}
	return RouteInfo{}, false
}

// ServeRoutes registers a GET route at pattern that serves the route
// manifest as JSON. The manifest route lists itself.
func (a *App) ServeRoutes(pattern string) {
	a.Get(pattern, func(c *Context) error {
		return c.JSON(http.StatusOK, a.Routes())
	})
}

// WriteRoutes writes the route manifest as indented JSON to w.
func (a *App) WriteRoutes(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a.Routes())
}

// WriteRoutesYAML writes the route manifest as YAML to w.
func (a *App) WriteRoutesYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(a.Routes()); err != nil {
		return err
	}
	return enc.Close()
}
