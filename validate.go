package loom

import (
	"fmt"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
)

// Facet names the request surface a validator covers. Each route runs at
// most one validator per facet; the validator's output is stored under its
// facet for Validated to retrieve.
type Facet string

const (
	FacetPath   Facet = "path"
	FacetQuery  Facet = "query"
	FacetHeader Facet = "header"
	FacetBody   Facet = "body"
)

// Validator checks one facet of the request and returns the validated value
// handlers will read back through Validated. Returning an error stops the
// chain before any later validator or the handler runs; return a
// *ValidationError to produce a structured 400.
type Validator interface {
	Facet() Facet
	Validate(c *Context) (any, error)
}

// Validated returns the value produced by the facet's validator on this
// request, when one ran and its output is a T.
func Validated[T any](c *Context, f Facet) (T, bool) {
	var zero T
	v, ok := c.validatedValue(f)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Field is one named field checked by a rule validator. Build it with F.
type Field struct {
	name  string
	rules []Rule
}

// F declares a field and the rules applied to its raw text value, in order.
func F(name string, rules ...Rule) Field {
	return Field{name: name, rules: rules}
}

// Rule is one constraint on a field. Value checks run only when the field
// is present; Required and Default control presence itself.
type Rule struct {
	required bool
	def      string
	hasDef   bool
	check    func(value string) string // failure message, "" when satisfied
}

// Required fails the field when it is absent or empty.
func Required() Rule { return Rule{required: true} }

// Default substitutes v when the field is absent, making it present for
// every later rule and for the validated output.
func Default(v string) Rule { return Rule{def: v, hasDef: true} }

// MinLength requires at least n characters.
func MinLength(n int) Rule {
	return check(func(v string) string {
		if len(v) < n {
			return fmt.Sprintf("must be at least %d characters", n)
		}
		return ""
	})
}

// MaxLength requires at most n characters.
func MaxLength(n int) Rule {
	return check(func(v string) string {
		if len(v) > n {
			return fmt.Sprintf("must be at most %d characters", n)
		}
		return ""
	})
}

// Pattern requires the whole value to match expr. expr must compile; an
// invalid expression panics at route registration.
func Pattern(expr string) Rule {
	re := regexp.MustCompile("^(?:" + expr + ")$")
	return check(func(v string) string {
		if !re.MatchString(v) {
			return fmt.Sprintf("must match pattern %s", expr)
		}
		return ""
	})
}

// OneOf requires the value to be one of the given options.
func OneOf(options ...string) Rule {
	return check(func(v string) string {
		for _, o := range options {
			if v == o {
				return ""
			}
		}
		return fmt.Sprintf("must be one of [%s]", strings.Join(options, ","))
	})
}

// Int requires the value to parse as a base-10 integer.
func Int() Rule {
	return check(func(v string) string {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return "must be an integer"
		}
		return ""
	})
}

// Float requires the value to parse as a number.
func Float() Rule {
	return check(func(v string) string {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "must be a number"
		}
		return ""
	})
}

// Bool requires the value to parse as a boolean.
func Bool() Rule {
	return check(func(v string) string {
		if _, err := strconv.ParseBool(v); err != nil {
			return "must be a boolean"
		}
		return ""
	})
}

// Min requires the value to be a number of at least n.
func Min(n float64) Rule {
	return check(func(v string) string {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "must be a number"
		}
		if f < n {
			return fmt.Sprintf("must be at least %v", n)
		}
		return ""
	})
}

// Max requires the value to be a number of at most n.
func Max(n float64) Rule {
	return check(func(v string) string {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "must be a number"
		}
		if f > n {
			return fmt.Sprintf("must be at most %v", n)
		}
		return ""
	})
}

func check(fn func(string) string) Rule { return Rule{check: fn} }

// Query validates query parameters against fields. The validated value is a
// map[string]string of the present fields with defaults applied.
func Query(fields ...Field) Validator {
	return &ruleValidator{facet: FacetQuery, fields: fields}
}

// Path validates bound path parameters against fields.
func Path(fields ...Field) Validator {
	return &ruleValidator{facet: FacetPath, fields: fields}
}

// Header validates request headers against fields.
func Header(fields ...Field) Validator {
	return &ruleValidator{facet: FacetHeader, fields: fields}
}

type ruleValidator struct {
	facet  Facet
	fields []Field
}

func (v *ruleValidator) Facet() Facet { return v.facet }

// Validate runs every rule on every field and reports all violations
// together, so the client sees the complete picture in one round trip.
func (v *ruleValidator) Validate(c *Context) (any, error) {
	out := make(map[string]string, len(v.fields))
	var errs []FieldError

	for _, f := range v.fields {
		value, present := v.lookup(c, f.name)

		for _, r := range f.rules {
			if r.hasDef && !present {
				value = r.def
				present = true
			}
		}

		for _, r := range f.rules {
			if r.required && (!present || value == "") {
				errs = append(errs, FieldError{Field: f.name, Message: "is required"})
			}
		}
		if !present {
			continue
		}

		out[f.name] = value
		for _, r := range f.rules {
			if r.check == nil {
				continue
			}
			if msg := r.check(value); msg != "" {
				errs = append(errs, FieldError{Field: f.name, Message: msg, Value: value})
			}
		}
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Facet: v.facet, Fields: errs}
	}
	return out, nil
}

func (v *ruleValidator) lookup(c *Context, name string) (string, bool) {
	switch v.facet {
	case FacetQuery:
		vals, ok := c.queryValues()[name]
		if !ok || len(vals) == 0 {
			return "", false
		}
		return vals[0], true
	case FacetPath:
		return c.params.Lookup(name)
	case FacetHeader:
		vals, ok := c.req.Header[textproto.CanonicalMIMEHeaderKey(name)]
		if !ok || len(vals) == 0 {
			return "", false
		}
		return vals[0], true
	case FacetBody:
	}
	return "", false
}
