package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogapi/internal/telemetry/metrics"
	"github.com/2beens/blogapi/pkg"
)

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// PerFifteenMinutes is the window of the global limit.
func PerFifteenMinutes(rate int) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  rate,
		Period: 15 * time.Minute,
	}
}

// RateLimit limits requests per client IP, separately for each routerName.
// X-Real-Ip and X-Forwarded-For are only used for the key when
// trustProxyHeaders is set.
func RateLimit(
	rateLimiter RequestRateLimiter,
	routerName string,
	limit redis_rate.Limit,
	trustProxyHeaders bool,
	metricsManager *metrics.Manager,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := pkg.ReadUserIP(r, trustProxyHeaders)
			if err != nil {
				ip = "unknown"
			}

			res, err := rateLimiter.Allow(
				r.Context(),
				fmt.Sprintf("%s:%s", routerName, ip),
				limit,
			)
			if err != nil {
				log.Errorf("rate limit [%s]: %s", routerName, err)
				pkg.WriteErrorResponse(w, http.StatusInternalServerError, "Server Error", fmt.Errorf("rate limit internal error"))
				return
			}

			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			metricsManager.CounterRateLimitedRequests.Inc()
			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			pkg.WriteErrorResponse(
				w,
				http.StatusTooManyRequests,
				"Too many requests, please try again later.",
				nil,
			)
		})
	}
}
