package ratelimit

import (
	"net"
	"strings"
)

// UnknownIP is returned when no address can be extracted. Admission control
// must never crash on malformed headers, so extraction always succeeds.
const UnknownIP = "unknown"

// HeaderGetter is the narrow view of request headers the extractor needs.
// http.Header satisfies it, and non-HTTP transports can adapt trivially.
type HeaderGetter interface {
	Get(name string) string
}

// ClientIP extracts the caller address for rate-limit keying. Preference
// order: first X-Forwarded-For value, the CDN connection header, X-Real-IP,
// then the raw peer address.
func ClientIP(headers HeaderGetter, remoteAddr string) string {
	if headers != nil {
		if fwd := headers.Get("X-Forwarded-For"); fwd != "" {
			if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
				return first
			}
		}
		if ip := strings.TrimSpace(headers.Get("X-Nf-Client-Connection-Ip")); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(headers.Get("X-Real-Ip")); ip != "" {
			return ip
		}
	}

	if remoteAddr == "" {
		return UnknownIP
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}
