package loom

import (
	"net/http"
	"strings"
)

// TrailingSlash returns middleware that redirects paths ending in "/" to
// their slashless form with a 301, preserving the query string. Matching is
// slash-sensitive, so this is the opt-in way to make "/users/" reach a
// route registered as "/users". The root path is left alone.
func TrailingSlash() Middleware {
	return func(c *Context, next Next) error {
		p := c.Path()
		if p != "/" && strings.HasSuffix(p, "/") {
			target := strings.TrimRight(p, "/")
			if target == "" {
				target = "/"
			}
			if q := c.Request().URL.RawQuery; q != "" {
				target += "?" + q
			}
			return c.Redirect(http.StatusMovedPermanently, target)
		}
		return next()
	}
}

// HTTPSRedirect returns middleware that redirects plain HTTP requests to
// HTTPS, honoring X-Forwarded-Proto set by a terminating proxy.
func HTTPSRedirect() Middleware {
	return func(c *Context, next Next) error {
		r := c.Request()
		if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
			target := "https://" + r.Host + r.URL.RequestURI()
			return c.Redirect(http.StatusMovedPermanently, target)
		}
		return next()
	}
}

// NonWWWRedirect returns middleware that redirects the www subdomain to the
// bare host.
func NonWWWRedirect() Middleware {
	return func(c *Context, next Next) error {
		r := c.Request()
		if strings.HasPrefix(r.Host, "www.") {
			scheme := "http"
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				scheme = "https"
			}
			target := scheme + "://" + strings.TrimPrefix(r.Host, "www.") + r.URL.RequestURI()
			return c.Redirect(http.StatusMovedPermanently, target)
		}
		return next()
	}
}
