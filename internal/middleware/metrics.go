package middleware

import (
	"net/http"

	"medgraph-search/internal/observability"
)

// SearchMetricsMiddleware tracks in-flight search requests.
// Request duration and outcome are recorded inside the pipeline, where
// the error taxonomy is known; this layer only maintains the active
// request gauge so saturation is visible even when handlers hang.
func SearchMetricsMiddleware(metrics *observability.SearchMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			next.ServeHTTP(w, r)
		})
	}
}
