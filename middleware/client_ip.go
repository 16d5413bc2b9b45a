package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/classgate"
)

// ClientIP attaches the remote address host to the request context. Put
// chi's RealIP in front of it when running behind a trusted proxy.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if ip != "" {
			r = r.WithContext(classgate.WithClientIP(r.Context(), ip))
		}
		next.ServeHTTP(w, r)
	})
}
