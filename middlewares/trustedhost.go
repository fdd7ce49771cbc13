package middlewares

import (
	"net"
	"net/http"
	"strings"
)

// TrustedHost rejects requests whose Host header matches none of the
// allowed patterns. A pattern is an exact hostname or a "*.example.com"
// wildcard matching one level of subdomains; the list ["*"] disables the
// check. Ports are stripped before matching.
func TrustedHost(allowed []string) func(http.Handler) http.Handler {
	allowAll := len(allowed) == 0
	exact := make(map[string]struct{})
	var suffixes []string
	for _, pattern := range allowed {
		switch {
		case pattern == "*":
			allowAll = true
		case strings.HasPrefix(pattern, "*."):
			suffixes = append(suffixes, pattern[1:]) // keep ".example.com"
		default:
			exact[strings.ToLower(pattern)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAll {
				next.ServeHTTP(w, r)
				return
			}

			host := strings.ToLower(r.Host)
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}

			if _, ok := exact[host]; ok {
				next.ServeHTTP(w, r)
				return
			}
			for _, suffix := range suffixes {
				if strings.HasSuffix(host, suffix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSONError(w, http.StatusBadRequest, "invalid host header")
		})
	}
}
