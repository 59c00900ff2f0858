package trace

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"saldo/internal/log"
	"saldo/internal/metrics"
)

// Middleware logs and measures every request once it completes.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.StructuredLogger
	now       func() time.Time
}

// NewMiddleware creates a trace middleware. A nil logger falls back to the
// logger found in the request context.
func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger) *Middleware {
	m := &Middleware{extractIP: extractIP, now: time.Now}
	if logger != nil {
		m.logger = log.NewStructuredLogger(logger.WithComponent(log.ComponentHTTP))
	}
	return m
}

// Middleware returns HTTP middleware for request tracing. It must run after
// chi's RequestID so the id is available.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := m.now().Sub(start)
		route := RoutePattern(r)
		metrics.ObserveHTTP(r.Method, route, status, elapsed)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		logger := m.logger
		if logger == nil {
			logger = log.NewStructuredLogger(log.FromContext(r.Context()))
		}
		logger.LogHTTPEnd(r.Context(), r, route, status, elapsed.Milliseconds(), clientIP)
	})
}

// RoutePattern returns the matched chi route, e.g. /api/accounts/{id}.
// Unmatched requests share one label so metrics stay bounded.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// RequestID returns the id chi assigned to the request.
func RequestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}
