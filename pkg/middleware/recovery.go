package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"recordstore/service/pkg/telemetry/logging"
	"recordstore/service/pkg/telemetry/tracing"
)

// Recovery turns a panic escaping the handler chain into a generic 500
// response with body {"detail": "Internal Server Error"}. It must be the
// outermost middleware. http.ErrAbortHandler is re-panicked so net/http
// can abort the connection.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", tracing.PanicError(v).Error(),
					"error_type", tracing.ErrorKind(v),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				if rw.written {
					return
				}
				rw.Header().Set("Content-Type", "application/json")
				rw.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(rw).Encode(map[string]string{"detail": "Internal Server Error"})
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
