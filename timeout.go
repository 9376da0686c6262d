package loom

import (
	"context"
	"time"
)

// Timeout returns middleware that puts a deadline on the rest of the chain.
// Stage advancement stops once the deadline passes and the request fails as
// 503. Cancellation is cooperative: a stage already running is not
// interrupted, but it can watch c.Context() to stop early.
func Timeout(d time.Duration) Middleware {
	return func(c *Context, next Next) error {
		ctx, cancel := context.WithTimeout(c.Context(), d)
		defer cancel()
		c.WithContext(ctx)
		return next()
	}
}
