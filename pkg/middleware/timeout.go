package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Timeout bounds the request context to timeout. Handlers observe the
// deadline through the context. If the deadline passes and the handler
// returns without writing a response, a 504 with a detail body is written.
//
// The handler runs on the calling goroutine so that a panic still unwinds
// through the outer middleware.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if rw.written || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusGatewayTimeout)
			_ = json.NewEncoder(rw).Encode(map[string]string{"detail": "Request timeout"})
		})
	}
}
