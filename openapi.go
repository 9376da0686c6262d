package loom

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAPISpec is an OpenAPI 3.1 document generated from the route table.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi" yaml:"openapi"`
	Info    OpenAPIInfo         `json:"info" yaml:"info"`
	Paths   map[string]PathItem `json:"paths" yaml:"paths"`
}

// OpenAPIInfo titles the generated document.
type OpenAPIInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

// PathItem maps lowercase HTTP methods to the operation each serves.
type PathItem map[string]Operation

// Operation describes one method on one path.
type Operation struct {
	OperationID string                 `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []Parameter            `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody           `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]ResponseObj `json:"responses" yaml:"responses"`
}

// Parameter describes one path, query, or header input of an operation.
type Parameter struct {
	Name     string     `json:"name" yaml:"name"`
	In       string     `json:"in" yaml:"in"`
	Required bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Schema   JSONSchema `json:"schema" yaml:"schema"`
}

// RequestBody describes the expected request payload.
type RequestBody struct {
	Required bool                `json:"required" yaml:"required"`
	Content  map[string]MediaObj `json:"content" yaml:"content"`
}

// MediaObj carries the schema for one media type.
type MediaObj struct {
	Schema *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// ResponseObj describes one response of an operation.
type ResponseObj struct {
	Description string              `json:"description" yaml:"description"`
	Content     map[string]MediaObj `json:"content,omitempty" yaml:"content,omitempty"`
}

// documentedMethods stands in for a route registered with All: a document
// listing literally every method would drown the real ones.
var documentedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// OpenAPI builds an OpenAPI 3.1 document from the registered routes. Path
// parameters come from the route patterns, query and header parameters from
// rule validators, and request body schemas from Body validators. When two
// routes collide on path and method the later registration wins in the
// document, even though the earlier one shadows it at match time.
func (a *App) OpenAPI(info OpenAPIInfo) OpenAPISpec {
	a.mu.Lock()
	defer a.mu.Unlock()

	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info:    info,
		Paths:   make(map[string]PathItem, len(a.table.routes)),
	}
	for _, r := range a.table.routes {
		path := openAPIPath(r.pattern)
		item := spec.Paths[path]
		if item == nil {
			item = PathItem{}
			spec.Paths[path] = item
		}

		op := buildOperation(r)
		methods := r.methods
		if methods == nil {
			methods = documentedMethods
		}
		for _, m := range methods {
			item[strings.ToLower(m)] = op
		}
	}
	return spec
}

// openAPIPath renders a compiled pattern in OpenAPI template syntax: every
// parameter segment becomes {name} and a trailing wildcard {wildcard}.
func openAPIPath(p *RoutePattern) string {
	var b strings.Builder
	for _, s := range p.segs {
		b.WriteByte('/')
		switch s.kind {
		case segStatic:
			b.WriteString(s.literal)
		case segParam, segOptional, segRegex:
			b.WriteByte('{')
			b.WriteString(s.name)
			b.WriteByte('}')
		case segWildcard:
			b.WriteString("{wildcard}")
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

func buildOperation(r *route) Operation {
	op := Operation{
		OperationID: r.name,
		Responses: map[string]ResponseObj{
			"200": {Description: "Successful response"},
			"default": {
				Description: "Error",
				Content: map[string]MediaObj{
					"application/problem+json": {},
				},
			},
		},
	}

	for _, s := range r.pattern.segs {
		switch s.kind {
		case segParam, segOptional, segRegex:
			p := Parameter{
				Name:     s.name,
				In:       "path",
				Required: s.kind != segOptional,
				Schema:   JSONSchema{Type: "string"},
			}
			if s.kind == segRegex {
				p.Schema.Pattern = s.expr
			}
			op.Parameters = append(op.Parameters, p)
		case segWildcard:
			op.Parameters = append(op.Parameters, Parameter{
				Name:     "wildcard",
				In:       "path",
				Required: true,
				Schema:   JSONSchema{Type: "string"},
			})
		}
	}

	for _, v := range r.validators {
		if rv, ok := v.(*ruleValidator); ok {
			// Path fields are already documented off the pattern above.
			if rv.facet != FacetQuery && rv.facet != FacetHeader {
				continue
			}
			for _, f := range rv.fields {
				op.Parameters = append(op.Parameters, Parameter{
					Name:     f.name,
					In:       string(rv.facet),
					Required: fieldRequired(f),
					Schema:   JSONSchema{Type: "string"},
				})
			}
			continue
		}
		if bt, ok := v.(interface{ bodyType() reflect.Type }); ok {
			schema := typeToSchema(bt.bodyType())
			op.RequestBody = &RequestBody{
				Required: true,
				Content: map[string]MediaObj{
					"application/json": {Schema: &schema},
				},
			}
		}
	}
	return op
}

// fieldRequired reports whether the client must send the field: it carries a
// Required rule and no Default that would stand in for it.
func fieldRequired(f Field) bool {
	var required, hasDef bool
	for _, r := range f.rules {
		if r.required {
			required = true
		}
		if r.hasDef {
			hasDef = true
		}
	}
	return required && !hasDef
}

// ServeOpenAPI registers a GET route at pattern that serves the OpenAPI
// document as JSON. The document includes this route.
func (a *App) ServeOpenAPI(pattern string, info OpenAPIInfo) {
	a.Get(pattern, func(c *Context) error {
		return c.JSON(http.StatusOK, a.OpenAPI(info))
	})
}

// WriteOpenAPI writes the OpenAPI document as indented JSON to w.
func (a *App) WriteOpenAPI(w io.Writer, info OpenAPIInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a.OpenAPI(info))
}

// WriteOpenAPIYAML writes the OpenAPI document as YAML to w.
func (a *App) WriteOpenAPIYAML(w io.Writer, info OpenAPIInfo) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(a.OpenAPI(info)); err != nil {
		return err
	}
	return enc.Close()
}
