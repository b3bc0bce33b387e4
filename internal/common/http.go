package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP determines the caller address used in rate-limit keys for the
// public share surface. Ports are stripped so reconnects from the same
// client count against the same window.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		candidate := strings.TrimSpace(strings.Split(ip, ",")[0])
		if candidate != "" {
			return stripPort(candidate)
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return stripPort(ip)
	}
	return stripPort(strings.TrimSpace(r.RemoteAddr))
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
