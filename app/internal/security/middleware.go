package security

import (
	"net"
	"net/http"
	"strings"
)

// SecureHeaders adds security headers to responses. The API only serves
// JSON, so the policy forbids everything else.
func SecureHeaders(next http.Handler) http.Handler {
	const csp = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Read-only API: no request needs a body
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		w.Header().Set("Content-Security-Policy", csp)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client IP from the request, preferring the first
// X-Forwarded-For hop
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return RemoteIP(r)
}

// RemoteIP is the peer address without the port
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFunc returns the key function for rate limiting. Forwarded
// headers are only honoured behind a trusted proxy; otherwise any client
// could pick its own bucket.
func ClientIPFunc(trustProxy bool) func(*http.Request) string {
	if trustProxy {
		return ClientIP
	}
	return RemoteIP
}
