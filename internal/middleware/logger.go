package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
)

// requestOperator is filled in by Auth further down the chain so the request
// log line can name the operator who settled deposits.
type requestOperator struct {
	id    uuid.UUID
	depot string
}

const requestOperatorKey contextKey = "request_operator"

func recordOperator(ctx context.Context, id uuid.UUID, depot string) {
	if op, ok := ctx.Value(requestOperatorKey).(*requestOperator); ok {
		op.id = id
		op.depot = depot
	}
}

// Logger is a middleware that logs HTTP requests
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		op := &requestOperator{}
		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestOperatorKey, op)))

		event := logger.FromContext(r.Context()).Info()
		if wrapped.statusCode >= http.StatusInternalServerError {
			event = logger.FromContext(r.Context()).Error()
		}
		if op.id != uuid.Nil {
			event = event.Str("operator_id", op.id.String()).Str("depot_id", op.depot)
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Str("ip", getClientIP(r)).
			Str("user_agent", r.UserAgent()).
			Msg("HTTP Request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
