package loom

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

const csrfStoreKey = "loom:csrf-token"

// CSRFConfig configures the CSRF middleware.
type CSRFConfig struct {
	TokenLength int    // default: 32
	CookieName  string // default: "_csrf"
	HeaderName  string // default: "X-CSRF-Token"
	Secure      bool   // cookie secure flag
	SameSite    http.SameSite
}

// CSRF returns middleware that implements double-submit cookie CSRF
// protection. Safe methods (GET, HEAD, OPTIONS) only issue the token;
// unsafe methods must echo it in the header or the chain short-circuits
// with 403.
func CSRF(cfg ...CSRFConfig) Middleware {
	conf := CSRFConfig{
		TokenLength: 32,
		CookieName:  "_csrf",
		HeaderName:  "X-CSRF-Token",
		SameSite:    http.SameSiteLaxMode,
	}
	if len(cfg) > 0 {
		if cfg[0].TokenLength > 0 {
			conf.TokenLength = cfg[0].TokenLength
		}
		if cfg[0].CookieName != "" {
			conf.CookieName = cfg[0].CookieName
		}
		if cfg[0].HeaderName != "" {
			conf.HeaderName = cfg[0].HeaderName
		}
		conf.Secure = cfg[0].Secure
		if cfg[0].SameSite != 0 {
			conf.SameSite = cfg[0].SameSite
		}
	}

	return func(c *Context, next Next) error {
		token := ""
		if cookie, err := c.Cookie(conf.CookieName); err == nil {
			token = cookie.Value
		}

		if token == "" {
			token = generateCSRFToken(conf.TokenLength)
			if err := c.SetCookie(&http.Cookie{
				Name:     conf.CookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   conf.Secure,
				SameSite: conf.SameSite,
			}); err != nil {
				return err
			}
		}

		c.Set(csrfStoreKey, token)

		if isSafeMethod(c.Method()) {
			return next()
		}

		headerToken := c.Header(conf.HeaderName)
		if headerToken == "" || headerToken != token {
			return Error(http.StatusForbidden, "CSRF token mismatch")
		}

		return next()
	}
}

// CSRFToken returns the token issued by the CSRF middleware, or "".
func CSRFToken(c *Context) string {
	token, _ := Stored[string](c, csrfStoreKey)
	return token
}

func generateCSRFToken(length int) string {
	b := make([]byte, length)
	//nolint:errcheck,gosec // crypto/rand.Read always returns nil error
	rand.Read(b)
	return hex.EncodeToString(b)
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
