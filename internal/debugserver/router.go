package debugserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cachewarm/cachewarm/internal/logger"
	"github.com/cachewarm/cachewarm/pkg/metrics"
	"github.com/cachewarm/cachewarm/pkg/prefetch"
)

// StatsFunc reports a snapshot of runtime counters for the /stats endpoint.
// The returned map is serialized to JSON as-is.
type StatsFunc func() map[string]any

// SubmitFunc hands index batches submitted over HTTP to the worker pool.
// It returns false when the pool cannot accept the batches right now.
type SubmitFunc func(batches []prefetch.IndexBatch) bool

// newRouter builds the chi router for the debug endpoints.
//
// Routes:
//   - GET  /healthz  - liveness probe
//   - GET  /stats    - runtime counters (cache hits, queue depth, ...)
//   - POST /prefetch - submit index batches to the worker pool
//   - GET  /metrics  - Prometheus exposition (only when metrics are enabled)
func newRouter(stats StatsFunc, submit SubmitFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snapshot := map[string]any{}
		if stats != nil {
			snapshot = stats()
		}
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			logger.Error("failed to encode stats response", "error", err)
		}
	})

	if submit != nil {
		r.Post("/prefetch", prefetchHandler(submit))
	}

	if metrics.IsEnabled() {
		r.Handle("/metrics", metrics.Handler())
	}

	return r
}

// prefetchHandler decodes a submitted batch list and forwards it to the
// worker pool. The body is the wire format the storage tier consumes: a
// JSON array of index arrays, e.g. [[1,2,3],[4]].
func prefetchHandler(submit SubmitFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batches []prefetch.IndexBatch
		if err := json.NewDecoder(r.Body).Decode(&batches); err != nil {
			http.Error(w, fmt.Sprintf("invalid batch list: %v", err), http.StatusBadRequest)
			return
		}
		if len(batches) == 0 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if !submit(batches) {
			http.Error(w, "worker pool not accepting batches", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// requestLogger logs debug endpoint requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("debug request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
