package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per client address. It guards the public auth
// routes, where no identity is known yet.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(windowLength)),
	)
}

// UserRateLimit limits requests per signed-in user, falling back to the
// client address. It must run after Auth.
func UserRateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(userKey),
		httprate.WithLimitHandler(limitExceeded(windowLength)),
	)
}

func userKey(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return "ip:" + r.RemoteAddr, nil
}

func limitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := int(window.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	body := `{"error":"rate limit exceeded","retry_after":` + strconv.Itoa(retryAfter) + `}`

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(body))
	}
}
