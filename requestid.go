package loom

import "github.com/google/uuid"

const requestIDStoreKey = "loom:request-id"

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	Header    string        // default: "X-Request-ID"
	Generator func() string // default: random UUID
}

// RequestID returns middleware that assigns a unique ID to each request.
// The ID is taken from the request header when present and generated
// otherwise; it is stored on the Context for RequestIDFrom and echoed on
// the response header.
func RequestID(cfg ...RequestIDConfig) Middleware {
	conf := RequestIDConfig{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}
	if len(cfg) > 0 {
		if cfg[0].Header != "" {
			conf.Header = cfg[0].Header
		}
		if cfg[0].Generator != nil {
			conf.Generator = cfg[0].Generator
		}
	}

	return func(c *Context, next Next) error {
		id := c.Header(conf.Header)
		if id == "" {
			id = conf.Generator()
		}
		c.Set(requestIDStoreKey, id)
		if err := c.SetHeader(conf.Header, id); err != nil {
			return err
		}
		return next()
	}
}

// RequestIDFrom returns the ID assigned by the RequestID middleware, or "".
func RequestIDFrom(c *Context) string {
	id, _ := Stored[string](c, requestIDStoreKey)
	return id
}
