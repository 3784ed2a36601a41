package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/fraudshield/internal/logging"
	"github.com/gyaneshwarpardhi/fraudshield/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudshield/internal/traces"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware tags each request with an ID, stores a request-scoped
// logger in the context, opens a span and logs the outcome.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, reqID)

		log := slog.Default().With("request_id", reqID)
		ctx := logging.WithLogger(logging.WithRequestID(r.Context(), reqID), log)
		ctx, span := traces.StartSpan(ctx, r.Method+" "+r.URL.Path, traces.RequestID(reqID))
		defer span.End()
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rec.status >= http.StatusInternalServerError {
			log.Error("request failed", attrs...)
			return
		}
		log.Info("request", attrs...)
	})
}
