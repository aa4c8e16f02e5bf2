package security

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Policy lists the hardening headers sent with every response. Empty
// fields are not sent.
type Policy struct {
	ContentSecurity string
	FrameOptions    string
	ContentTypeOpts string
	Referrer        string
	Permissions     string
	OpenerPolicy    string
	ResourcePolicy  string
	HSTSMaxAge      time.Duration // TLS connections only
	HSTSSubdomains  bool
}

// DashboardPolicy allows the own origin plus the htmx script from unpkg.
func DashboardPolicy() Policy {
	return Policy{
		ContentSecurity: "default-src 'self'; script-src 'self' https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'; " +
			"object-src 'none'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'",
		FrameOptions:    "DENY",
		ContentTypeOpts: "nosniff",
		Referrer:        "strict-origin-when-cross-origin",
		Permissions:     "geolocation=(), microphone=(), camera=(), payment=()",
		OpenerPolicy:    "same-origin",
		ResourcePolicy:  "same-origin",
		HSTSMaxAge:      365 * 24 * time.Hour,
		HSTSSubdomains:  true,
	}
}

// Headers returns middleware that applies p.
func Headers(p Policy) func(http.Handler) http.Handler {
	fixed := [][2]string{
		{"Content-Security-Policy", p.ContentSecurity},
		{"X-Frame-Options", p.FrameOptions},
		{"X-Content-Type-Options", p.ContentTypeOpts},
		{"Referrer-Policy", p.Referrer},
		{"Permissions-Policy", p.Permissions},
		{"Cross-Origin-Opener-Policy", p.OpenerPolicy},
		{"Cross-Origin-Resource-Policy", p.ResourcePolicy},
	}
	hsts := ""
	if p.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(int(p.HSTSMaxAge/time.Second))
		if p.HSTSSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range fixed {
				if kv[1] != "" {
					h.Set(kv[0], kv[1])
				}
			}
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore keeps responses out of every cache.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// CacheFor lets shared caches keep responses for maxAge.
func CacheFor(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(maxAge/time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
