package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds a request with a context deadline. It relies on
// handlers checking context.Done() for cooperative cancellation; it does not
// forcibly terminate them. Must not be applied to event-stream routes, which
// stay open as long as the upstream keeps talking.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
