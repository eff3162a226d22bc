// Copyright 2025 ActiveStore
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const ctxKeyRequestID contextKey = "request_id"

// requestIDFrom returns the request ID stamped by the middleware, or "".
func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// statusRecorder captures the status code a handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware stamps every request with a UUID, echoes it in X-Request-ID,
// and writes one structured access-log line when the handler returns.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		h.log.InfoWithDuration(requestID, "request completed",
			float64(time.Since(start).Microseconds())/1000.0,
			map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": rec.status,
			})
	})
}
