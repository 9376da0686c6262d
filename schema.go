package loom

import (
	"reflect"
	"strings"
	"time"
)

// JSONSchema is the subset of JSON Schema the OpenAPI document builder
// emits.
type JSONSchema struct {
	Type                 string                `json:"type,omitempty" yaml:"type,omitempty"`
	Format               string                `json:"format,omitempty" yaml:"format,omitempty"`
	Pattern              string                `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum                 []string              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Properties           map[string]JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items                *JSONSchema           `json:"items,omitempty" yaml:"items,omitempty"`
	Required             []string              `json:"required,omitempty" yaml:"required,omitempty"`
	AdditionalProperties *JSONSchema           `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
)

// typeToSchema reflects a Go type into the schema encoding/json would
// produce for it: struct fields under their json names, maps as objects,
// slices as arrays, []byte as a base64 string.
func typeToSchema(t reflect.Type) JSONSchema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case timeType:
		return JSONSchema{Type: "string", Format: "date-time"}
	case durationType:
		return JSONSchema{Type: "string", Format: "duration"}
	}

	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return JSONSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return JSONSchema{Type: "number"}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", Format: "byte"}
		}
		item := typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &item}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		val := typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &val}
	case reflect.Struct:
		return structToSchema(t)
	default:
		return JSONSchema{}
	}
}

// structToSchema documents exported fields under their json names. The
// validate tag contributes what it can without running: required lands in
// the schema's Required list and oneof becomes an enum.
func structToSchema(t reflect.Type) JSONSchema {
	schema := JSONSchema{Type: "object", Properties: map[string]JSONSchema{}}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonFieldName(f)
		if name == "" {
			continue
		}

		fs := typeToSchema(f.Type)
		for _, tok := range strings.Split(f.Tag.Get("validate"), ",") {
			if tok == "required" {
				schema.Required = append(schema.Required, name)
			}
			if rest, ok := strings.CutPrefix(tok, "oneof="); ok && fs.Type == "string" {
				fs.Enum = strings.Fields(rest)
			}
		}
		schema.Properties[name] = fs
	}
	return schema
}

// jsonFieldName returns the name encoding/json marshals the field under, or
// "" when the field is skipped.
func jsonFieldName(f reflect.StructField) string {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
