package loom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SelfValidator is implemented by body types that validate themselves after
// decoding. It runs after struct tag validation.
type SelfValidator interface {
	Validate() error
}

var (
	tagValidator     *validator.Validate
	tagValidatorOnce sync.Once
)

// bodyTagValidator returns the shared struct tag validator. Field names in
// violations come from json tags so they line up with the wire format.
func bodyTagValidator() *validator.Validate {
	tagValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "-" {
				return ""
			}
			if idx := strings.Index(name, ","); idx != -1 {
				name = name[:idx]
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		tagValidator = v
	})
	return tagValidator
}

// Body returns a validator for the body facet. It consumes the request
// body, decodes it as JSON into a T, applies T's `validate` struct tags,
// and runs Validate when T implements SelfValidator. The decoded T is what
// ValidatedBody returns in the handler.
func Body[T any]() Validator {
	return bodyValidator[T]{}
}

// ValidatedBody returns the decoded body produced by a Body[T] validator on
// this route.
func ValidatedBody[T any](c *Context) (T, bool) {
	return Validated[T](c, FacetBody)
}

type bodyValidator[T any] struct{}

func (bodyValidator[T]) Facet() Facet { return FacetBody }

// bodyType exposes T for the OpenAPI document builder.
func (bodyValidator[T]) bodyType() reflect.Type { return reflect.TypeFor[T]() }

func (bodyValidator[T]) Validate(c *Context) (any, error) {
	raw, err := c.Body()
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ValidationError{
			Facet:  FacetBody,
			Fields: []FieldError{{Field: "body", Message: "is required"}},
		}
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &ValidationError{
			Facet:  FacetBody,
			Fields: []FieldError{{Field: "body", Message: "must be valid JSON"}},
		}
	}

	if isStructLike(reflect.TypeFor[T]()) {
		if err := bodyTagValidator().Struct(&v); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return nil, fmt.Errorf("validate body: %w", err)
			}
			fields := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, FieldError{
					Field:   fieldPath(fe),
					Message: tagMessage(fe),
					Value:   fe.Value(),
				})
			}
			return nil, &ValidationError{Facet: FacetBody, Fields: fields}
		}
	}

	if sv, ok := any(&v).(SelfValidator); ok {
		if err := sv.Validate(); err != nil {
			return nil, err
		}
	} else if sv, ok := any(v).(SelfValidator); ok {
		if err := sv.Validate(); err != nil {
			return nil, err
		}
	}

	return v, nil
}

func isStructLike(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// fieldPath strips the root type name off the violation namespace, leaving
// the json-tagged path into the body.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.IndexByte(ns, '.'); idx != -1 {
		return ns[idx+1:]
	}
	return fe.Field()
}

// tagMessage renders a violated validation tag as a client-facing message.
func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.Join(strings.Fields(fe.Param()), ","))
	default:
		return fmt.Sprintf("failed rule %q", fe.Tag())
	}
}
