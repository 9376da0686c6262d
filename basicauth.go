package loom

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

const basicAuthStoreKey = "loom:basic-auth-user"

// BasicAuthConfig configures the BasicAuth middleware.
type BasicAuthConfig struct {
	Users     map[string]string                      // static username → password table
	Realm     string                                 // default: "Restricted"
	Validator func(username, password string) bool   // overrides Users when set
}

// BasicAuth returns middleware that enforces HTTP Basic Authentication
// (RFC 7617). Password comparison against the static table is constant
// time. On failure the chain short-circuits with 401 and a WWW-Authenticate
// challenge; on success the username is stored for BasicAuthUser.
func BasicAuth(cfg BasicAuthConfig) Middleware {
	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}
	challenge := `Basic realm="` + realm + `"`

	deny := func(c *Context) error {
		if err := c.SetHeader("WWW-Authenticate", challenge); err != nil {
			return err
		}
		return Error(http.StatusUnauthorized, "unauthorized")
	}

	return func(c *Context, next Next) error {
		auth := c.Header("Authorization")
		const prefix = "Basic "
		if !strings.HasPrefix(auth, prefix) {
			return deny(c)
		}

		decoded, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
		if err != nil {
			return deny(c)
		}
		username, password, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return deny(c)
		}

		var authenticated bool
		if cfg.Validator != nil {
			authenticated = cfg.Validator(username, password)
		} else if expected, exists := cfg.Users[username]; exists {
			authenticated = subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
		}
		if !authenticated {
			return deny(c)
		}

		c.Set(basicAuthStoreKey, username)
		return next()
	}
}

// BasicAuthUser returns the username authenticated by BasicAuth, or "".
func BasicAuthUser(c *Context) string {
	user, _ := Stored[string](c, basicAuthStoreKey)
	return user
}
