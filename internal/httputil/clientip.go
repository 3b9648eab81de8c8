// Package httputil holds small request helpers shared by the HTTP layer.
package httputil

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds caller-supplied IDs echoed back and logged.
const maxRequestIDLen = 128

// RequestID returns the caller's X-Request-ID, or a fresh UUID when the
// header is absent or oversized.
func RequestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	return id
}

// ClientIP extracts the client IP address from the request.
// With trustProxy, the first X-Forwarded-For entry and then X-Real-IP are
// used when they parse as IP addresses. Otherwise RemoteAddr is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
