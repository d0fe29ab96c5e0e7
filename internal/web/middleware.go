package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/leofalp/planner/providers/observability"
)

// logRequests logs every request and records the HTTP metrics.
func (server *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if server.observer == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		elapsed := time.Since(start)

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}

		ctx := r.Context()
		server.observer.Counter(observability.MetricHTTPRequestCount).Add(ctx, 1,
			observability.String(observability.AttrHTTPMethod, r.Method),
			observability.Int(observability.AttrHTTPStatusCode, status),
		)
		server.observer.Histogram(observability.MetricHTTPRequestDuration).Record(ctx, elapsed.Seconds(),
			observability.String(observability.AttrHTTPMethod, r.Method),
		)

		attrs := []observability.Attribute{
			observability.String(observability.AttrHTTPMethod, r.Method),
			observability.String(observability.AttrHTTPPath, r.URL.Path),
			observability.Int(observability.AttrHTTPStatusCode, status),
			observability.Int(observability.AttrHTTPResponseBodySize, wrapped.BytesWritten()),
			observability.String(observability.AttrHTTPRequestID, middleware.GetReqID(ctx)),
			observability.Duration(observability.AttrDuration, elapsed),
		}
		if status >= http.StatusInternalServerError {
			server.observer.Warn(ctx, "HTTP request served", attrs...)
			return
		}
		server.observer.Info(ctx, "HTTP request served", attrs...)
	})
}
