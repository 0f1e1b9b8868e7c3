package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/felixge/httpsnoop"
)

// Logger logs request details and response metrics. Successful requests to
// any of the quiet paths are logged at the DEBUG level, so that frequent
// requests like health checks and metric scrapes don't flood the log.
func Logger(logger *slog.Logger, quiet ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			level := slog.LevelInfo
			switch {
			case m.Code >= http.StatusInternalServerError:
				level = slog.LevelWarn
			case m.Code < http.StatusBadRequest && slices.Contains(quiet, r.URL.Path):
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level,
				fmt.Sprintf("%s %s", r.Method, r.URL),
				"response_code", m.Code,
				"duration", m.Duration,
				"bytes_sent", m.Written,
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
