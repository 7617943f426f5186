package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/audax/pkg/metrics"
)

// errorClass labels a failed response for the error metrics.
type errorClass struct {
	kind     string
	severity string
}

// classify maps a response status onto the error metrics labels. A 503
// means no board yet or the refresh loop is stopped, and a 429 means the
// refresh queue is full; neither is a server fault.
func classify(code int) (errorClass, bool) {
	switch {
	case code < http.StatusBadRequest:
		return errorClass{}, false
	case code == http.StatusServiceUnavailable:
		return errorClass{kind: "not_ready", severity: "low"}, true
	case code == http.StatusTooManyRequests:
		return errorClass{kind: "backpressure", severity: "low"}, true
	case code == http.StatusNotFound:
		return errorClass{kind: "not_found", severity: "low"}, true
	case code >= http.StatusInternalServerError:
		return errorClass{kind: "server_error", severity: "high"}, true
	default:
		return errorClass{kind: "client_error", severity: "medium"}, true
	}
}

// MetricsMiddleware records request count, latency and error class for the
// named endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.code)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Milliseconds()))

		if c, failed := classify(rec.code); failed {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, c.kind)
			metrics.RecordErrorByType(c.kind, c.severity)
		}
	}
}

// statusRecorder remembers the first status written.
type statusRecorder struct {
	http.ResponseWriter
	code    int
	written bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.written {
		s.code = code
		s.written = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.written = true
	return s.ResponseWriter.Write(b)
}
