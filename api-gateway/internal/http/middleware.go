package http

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const RequestIDHeader = "X-Request-ID"

// EchoRequestID returns the request id chosen by middleware.RequestID to the
// caller so it can be correlated with upstream logs.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
