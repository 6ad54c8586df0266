package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogapi/internal/telemetry/metrics"
	"github.com/2beens/blogapi/pkg"
)

func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("http: panic serving %s: %v\n%s", req.URL.Path, r, debug.Stack())
					if metricsManager != nil {
						metricsManager.CounterHandleRequestPanic.Inc()
					}
					pkg.WriteErrorResponse(
						respWriter,
						http.StatusInternalServerError,
						"Server Error",
						fmt.Errorf("panic: %v", r),
					)
				}
			}()

			// handler call
			next.ServeHTTP(respWriter, req)
		})
	}
}
