package api

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// SubmitRateLimit rejects requests with 429 once the shared token bucket is
// empty. Every submission ends in a model call, so the bucket is global
// rather than per client. A nil limiter passes everything through.
func SubmitRateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(delay/time.Second)+1))
				httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many submissions, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewSubmitLimiter returns nil when perSecond is not positive.
func NewSubmitLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
