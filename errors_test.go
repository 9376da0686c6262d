package loom_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom"
)

func TestError(t *testing.T) {
	t.Parallel()

	err := loom.Error(http.StatusTeapot, "short and stout")
	assert.Equal(t, "short and stout", err.Error())
	assert.Equal(t, http.StatusTeapot, loom.ErrorStatus(err))

	var he *loom.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusTeapot, he.Status)
}

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := loom.Errorf(http.StatusNotFound, "user %d not found", 42)
	assert.Equal(t, "user 42 not found", err.Error())
	assert.Equal(t, http.StatusNotFound, loom.ErrorStatus(err))
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want int
	}{
		"http error":          {err: loom.Error(http.StatusConflict, "x"), want: http.StatusConflict},
		"wrapped http error":  {err: fmt.Errorf("context: %w", loom.Error(http.StatusConflict, "x")), want: http.StatusConflict},
		"problem detail":      {err: &loom.ProblemDetail{Status: http.StatusForbidden}, want: http.StatusForbidden},
		"validation error":    {err: &loom.ValidationError{Facet: loom.FacetQuery}, want: http.StatusBadRequest},
		"plain error":         {err: errors.New("boom"), want: http.StatusInternalServerError},
		"chain protocol":      {err: &loom.ChainProtocolError{Stage: "x", Reason: "y"}, want: http.StatusInternalServerError},
		"recovered panic":     {err: &loom.HandlerError{Recovered: "boom"}, want: http.StatusInternalServerError},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, loom.ErrorStatus(tc.err))
		})
	}
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want int
	}{
		"canceled":          {err: context.Canceled, want: loom.StatusClientClosedRequest},
		"wrapped canceled":  {err: fmt.Errorf("stage: %w", context.Canceled), want: loom.StatusClientClosedRequest},
		"deadline exceeded": {err: context.DeadlineExceeded, want: http.StatusServiceUnavailable},
		"body too large":    {err: &http.MaxBytesError{Limit: 10}, want: http.StatusRequestEntityTooLarge},
		"status coder":      {err: loom.Error(http.StatusTooManyRequests, "slow down"), want: http.StatusTooManyRequests},
		"plain error":       {err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, loom.StatusForError(tc.err))
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	one := &loom.ValidationError{
		Facet:  loom.FacetQuery,
		Fields: []loom.FieldError{{Field: "q", Message: "is required"}},
	}
	assert.Equal(t, "loom: query validation failed: q: is required", one.Error())

	many := &loom.ValidationError{
		Facet: loom.FacetBody,
		Fields: []loom.FieldError{
			{Field: "name", Message: "is required"},
			{Field: "email", Message: "must be a valid email address"},
		},
	}
	assert.Equal(t, "loom: body validation failed: 2 field(s)", many.Error())
}

func TestPatternError_Error(t *testing.T) {
	t.Parallel()

	_, err := loom.CompilePattern("nope")
	require.Error(t, err)
	assert.Equal(t, `loom: invalid pattern "nope": must begin with /`, err.Error())
}

func TestProblemDetail_Error(t *testing.T) {
	t.Parallel()

	withDetail := &loom.ProblemDetail{Title: "Bad Request", Detail: "field x is wrong"}
	assert.Equal(t, "field x is wrong", withDetail.Error())

	titleOnly := &loom.ProblemDetail{Title: "Bad Request"}
	assert.Equal(t, "Bad Request", titleOnly.Error())
}

func TestHandlerError_Error(t *testing.T) {
	t.Parallel()

	err := &loom.HandlerError{Recovered: "kaboom"}
	assert.Equal(t, "loom: handler panic: kaboom", err.Error())
}
