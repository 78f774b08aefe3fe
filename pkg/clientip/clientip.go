package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Proxy and CDN headers checked in priority order before RemoteAddr.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP extracts the real client IP address from the request.
// It checks proxy headers in priority order and falls back to RemoteAddr.
// The result is validated and normalized; if no valid address can be
// determined, the raw RemoteAddr is returned.
func GetIP(r *http.Request) string {
	for _, header := range proxyHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		// X-Forwarded-For may carry a chain "client, proxy1, proxy2";
		// the leftmost entry is the originating client.
		if header == "X-Forwarded-For" {
			if i := strings.IndexByte(value, ','); i >= 0 {
				value = value[:i]
			}
		}

		if ip := normalize(value); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := normalize(host); ip != "" {
		return ip
	}

	return r.RemoteAddr
}

// normalize validates a candidate address and returns its canonical form,
// or an empty string when the candidate is unusable. The unspecified
// addresses 0.0.0.0 and :: are treated as unusable.
func normalize(candidate string) string {
	ip := net.ParseIP(strings.TrimSpace(candidate))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
