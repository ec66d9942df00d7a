package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

type SecurityConfig struct {
	HSTS               bool
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
	CSPDirectives      []string
	// NoStore marks every response uncacheable
	NoStore bool
}

func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTS:               true,
		HSTSMaxAge:         31536000,
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		ReferrerPolicy:     "no-referrer",
		CSPDirectives: []string{
			"default-src 'none'",
			"frame-ancestors 'none'",
		},
		NoStore: true,
	}
}

// SecurityHeaders sets response headers for a JSON-only API serving patient
// data
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	var hsts string
	if config.HSTS {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", config.HSTSMaxAge)
	}
	csp := strings.Join(config.CSPDirectives, "; ")

	return func(c *gin.Context) {
		if hsts != "" {
			c.Header("Strict-Transport-Security", hsts)
		}
		c.Header("X-Frame-Options", config.FrameOptions)
		c.Header("X-Content-Type-Options", config.ContentTypeOptions)
		c.Header("Referrer-Policy", config.ReferrerPolicy)
		if csp != "" {
			c.Header("Content-Security-Policy", csp)
		}
		if config.NoStore {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}
