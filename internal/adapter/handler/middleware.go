package handler

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/km2209/onion-gateway/internal/core/service"
	"github.com/km2209/onion-gateway/internal/metric"
)

// WithHostGuard rejects requests whose declared host is not allowlisted
// before any routing, payload parsing or validation runs. Un-admitted hosts
// see one uniform response no matter which path, method or body they sent.
func WithHostGuard(next http.Handler, guard *service.HostGuard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !guard.Authorize(r.Host) {
			metric.HostRejectedTotal.Inc()
			writeJSON(w, http.StatusForbidden, ErrorResponse{
				Error: ErrorBody{Kind: "host_rejected", Message: "host not allowed"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithInflightLimit caps concurrent in-flight requests with a weighted
// semaphore. Acquisition honors the request context, so a client that gives
// up while queued releases its slot immediately.
func WithInflightLimit(next http.Handler, maxInflight int64) http.Handler {
	sem := semaphore.NewWeighted(maxInflight)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sem.Acquire(r.Context(), 1); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error: ErrorBody{Kind: "unavailable", Message: "server busy"},
			})
			return
		}
		defer sem.Release(1)
		next.ServeHTTP(w, r)
	})
}

// WithRequestLog logs every request after completion.
func WithRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"host", r.Host,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
