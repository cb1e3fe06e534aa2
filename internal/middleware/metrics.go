package middleware

import (
	"net/http"
	"time"
)

// RequestObserver records finished requests.
type RequestObserver interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// Metrics reports every request to obs.
func Metrics(obs RequestObserver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		obs.ObserveRequest(r.Method, rec.code(), time.Since(start))
	})
}
