package loom

import "strconv"

// SecureConfig configures the Secure headers middleware.
type SecureConfig struct {
	ContentTypeNosniff bool   // default: true → X-Content-Type-Options: nosniff
	FrameDeny          bool   // default: true → X-Frame-Options: DENY
	HSTSMaxAge         int    // default: 0 (disabled). If >0: Strict-Transport-Security
	XSSProtection      string // default: "1; mode=block"
	ReferrerPolicy     string // default: "strict-origin-when-cross-origin"
}

// Secure returns middleware that stages security response headers before
// the rest of the chain runs. With no arguments, it uses sensible defaults.
func Secure(cfg ...SecureConfig) Middleware {
	conf := SecureConfig{
		ContentTypeNosniff: true,
		FrameDeny:          true,
		XSSProtection:      "1; mode=block",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	if len(cfg) > 0 {
		conf = cfg[0]
	}

	return func(c *Context, next Next) error {
		h := c.ResponseHeader()
		if conf.ContentTypeNosniff {
			h.Set("X-Content-Type-Options", "nosniff")
		}
		if conf.FrameDeny {
			h.Set("X-Frame-Options", "DENY")
		}
		if conf.HSTSMaxAge > 0 {
			h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(conf.HSTSMaxAge))
		}
		if conf.XSSProtection != "" {
			h.Set("X-XSS-Protection", conf.XSSProtection)
		}
		if conf.ReferrerPolicy != "" {
			h.Set("Referrer-Policy", conf.ReferrerPolicy)
		}

		return next()
	}
}
