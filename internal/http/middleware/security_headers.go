package middleware

import (
	"net/http"
	"strconv"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/config"
)

type header struct {
	name  string
	value string
}

// securityHeaderSet lists the configured headers, skipping empty values.
func securityHeaderSet(cfg config.SecurityHeadersConfig) []header {
	var set []header
	add := func(name, value string) {
		if value != "" {
			set = append(set, header{name: name, value: value})
		}
	}

	add("Content-Security-Policy", cfg.CSP)
	if cfg.HSTSMaxAge > 0 {
		add("Strict-Transport-Security", "max-age="+strconv.Itoa(cfg.HSTSMaxAge)+"; includeSubDomains")
	}
	add("X-Frame-Options", cfg.FrameOptions)
	add("X-Content-Type-Options", cfg.ContentTypeOptions)
	add("X-XSS-Protection", cfg.XSSProtection)
	add("Referrer-Policy", cfg.ReferrerPolicy)
	add("Permissions-Policy", cfg.PermissionsPolicy)
	// Token-bearing responses and redirects must not be cached.
	add("Cache-Control", cfg.CacheControl)
	return set
}

// SecurityHeaders creates middleware that applies OWASP-recommended security headers.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	set := securityHeaderSet(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, hdr := range set {
				h.Set(hdr.name, hdr.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
