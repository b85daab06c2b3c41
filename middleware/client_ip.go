package middleware

import (
	"net"
	"net/http"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
)

// ClientIP records the peer address of each request as its audit origin
// and throttle key. Run it after any proxy middleware that rewrites
// RemoteAddr.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(goFaceAuth.WithClientIP(r.Context(), host)))
	})
}
