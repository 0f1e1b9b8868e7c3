package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"
)

// UnmatchedRoute is the route reported for requests that matched no pattern.
const UnmatchedRoute = "other"

// Observer records request metrics.
type Observer interface {
	ObserveRequest(method, route string, code int, seconds float64)
}

// Instrument reports request metrics to obs, labelled by the ServeMux pattern
// that matched the request rather than its path, so that the number of
// series stays bounded. next must be, or wrap, the ServeMux that routes the
// request.
func Instrument(obs Observer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			// The mux sets the pattern on the request it was given.
			route := r.Pattern
			if route == "" {
				route = UnmatchedRoute
			}
			obs.ObserveRequest(methodLabel(r.Method), route, m.Code, m.Duration.Seconds())
		})
	}
}

// methodLabel collapses nonstandard methods, which clients can choose freely.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	default:
		return "OTHER"
	}
}
