package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opsbed/fibsvc/pkg/metrics"
)

// HTTPMetricsMiddleware records request count, duration and in-flight gauge
// for every route.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := extractEndpoint(r.URL.Path)

		metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, endpoint).Inc()
		defer metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, endpoint).Dec()

		ww := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, statusCode).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)
	})
}

// extractEndpoint converts URL paths to metric-friendly endpoint patterns
func extractEndpoint(path string) string {
	switch {
	case path == "/fibonacci":
		return "/fibonacci"
	case strings.HasPrefix(path, "/config/feature/"):
		return "/config/feature/{feature}"
	case path == "/config":
		return "/config"
	case path == "/health":
		return "/health"
	case path == "/metrics":
		return "/metrics"
	default:
		return "unknown"
	}
}

// responseWrapper captures the HTTP status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	return rw.ResponseWriter.Write(b)
}
