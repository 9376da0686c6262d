package loom

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// Handler is the terminal function of a route. It reads the request through
// the Context and stages a response on it. A returned error short-circuits
// nothing further (the handler is innermost) but is passed to the app's
// error handler.
type Handler func(*Context) error

// Next advances the chain to the following stage and returns its result.
// A stage that never calls Next short-circuits every stage inside it.
type Next func() error

// Middleware wraps the rest of the chain. Code before the Next call runs on
// the way in (outermost first), code after it runs on the way out in reverse
// order. Returning without calling next skips everything downstream.
type Middleware func(*Context, Next) error

// stage is the uniform execution unit of a chain: middleware run as
// themselves, validators and handlers are adapted. The name shows up in
// protocol errors so a misbehaving stage can be pointed at.
type stage struct {
	name string
	run  func(*Context, Next) error
}

func middlewareStage(name string, m Middleware) stage {
	return stage{name: name, run: m}
}

func handlerStage(h Handler) stage {
	return stage{
		name: "handler",
		run: func(c *Context, _ Next) error {
			return h(c)
		},
	}
}

// validatorStage adapts a Validator into a stage that validates, stores the
// typed result under its facet, and advances. A validation failure stops the
// chain before any later validator or the handler runs.
func validatorStage(v Validator) stage {
	return stage{
		name: fmt.Sprintf("validator(%s)", v.Facet()),
		run: func(c *Context, next Next) error {
			val, err := v.Validate(c)
			if err != nil {
				return err
			}
			c.setValidated(v.Facet(), val)
			return next()
		},
	}
}

// runChain executes stages in order with panic containment. A panicking
// stage does not take the server down: the recovered value and stack are
// wrapped in a *HandlerError and surfaced like any other chain error.
// http.ErrAbortHandler is re-panicked so the host server keeps its abort
// semantics.
func runChain(c *Context, stages []stage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = &HandlerError{Recovered: rec, Stack: debug.Stack()}
		}
	}()
	return advance(c, stages, 0)
}

// advance runs stages[i], giving it a Next that moves to i+1. The request
// context is checked before each stage so a canceled request stops advancing
// instead of burning work; the context error is surfaced for the error
// boundary to map. Each stage's Next may be called once: the second call
// reports a *ChainProtocolError instead of re-running the downstream chain.
func advance(c *Context, stages []stage, i int) error {
	if i >= len(stages) {
		return nil
	}
	if err := c.err(); err != nil {
		return err
	}

	st := stages[i]
	called := false
	next := func() error {
		if called {
			return &ChainProtocolError{Stage: st.name, Reason: "next called more than once"}
		}
		called = true
		return advance(c, stages, i+1)
	}
	return st.run(c, next)
}
