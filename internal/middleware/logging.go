package middleware

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogapi/pkg"
)

// LogRequest logs every request once it has been served. Server errors are
// logged at warn level, everything else at debug.
func LogRequest(trustProxyHeaders bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			resp := newResponseWriter(w)

			next.ServeHTTP(resp, r)

			ip, _ := pkg.ReadUserIP(r, trustProxyHeaders)
			entry := log.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     resp.statusCode,
				"duration":   time.Since(begin).String(),
				"ip":         ip,
				"request_id": RequestIDFromContext(r.Context()),
				"ua":         r.Header.Get("User-Agent"),
			})
			if resp.statusCode >= http.StatusInternalServerError {
				entry.Warn(" ====> request")
				return
			}
			entry.Debug(" ====> request")
		})
	}
}
