package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/metrics"
)

// Logging logs every request with redacted headers and counts it by route
// pattern and status code. m may be nil.
func Logging(base *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			headers := RedactHeaders(r.Header)
			rec := NewStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.StatusCode)).Inc()
			}

			log := logger.FromContext(r.Context(), base)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			log.Debug("http request headers", "headers", headers)
		})
	}
}
