package loom

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// CORS returns middleware that handles Cross-Origin Resource Sharing. With
// no config, permissive defaults are used. Preflight OPTIONS requests
// short-circuit with 204; the CORS headers survive error responses because
// the error terminal keeps staged headers.
func CORS(cfg ...CORSConfig) Middleware {
	conf := CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}
	if len(cfg) > 0 {
		conf = cfg[0]
	}

	origins := strings.Join(conf.AllowOrigins, ", ")
	methods := strings.Join(conf.AllowMethods, ", ")
	headers := strings.Join(conf.AllowHeaders, ", ")
	expose := strings.Join(conf.ExposeHeaders, ", ")
	maxAge := ""
	if conf.MaxAge > 0 {
		maxAge = strconv.Itoa(conf.MaxAge)
	}

	return func(c *Context, next Next) error {
		h := c.ResponseHeader()
		h.Set("Access-Control-Allow-Origin", origins)
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)

		if expose != "" {
			h.Set("Access-Control-Expose-Headers", expose)
		}
		if conf.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}

		h.Set("Vary", "Origin")

		if c.Method() == http.MethodOptions {
			return c.NoContent()
		}

		return next()
	}
}
