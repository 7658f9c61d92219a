package simple

import (
	"net"
	"net/http"
	"strings"
)

// Details captures the HTTP-level facts of an authentication attempt
// for audit purposes: where it came from and under which session.
type Details struct {
	// ClientIP is the originating client address, honoring proxy
	// headers when present.
	ClientIP string

	// RemoteAddr is the immediate peer address of the connection.
	RemoteAddr string

	// UserAgent is the client's User-Agent header.
	UserAgent string

	// SessionID is the caller's session identifier, when one exists.
	SessionID string
}

// NewDetails extracts Details from an HTTP request. sessionID may be
// empty when no session has been established yet.
func NewDetails(r *http.Request, sessionID string) Details {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	return Details{
		ClientIP:   clientIP(r, remote),
		RemoteAddr: remote,
		UserAgent:  r.UserAgent(),
		SessionID:  sessionID,
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// falling back to the connection peer.
func clientIP(r *http.Request, fallback string) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return fallback
}
