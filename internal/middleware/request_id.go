package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
)

// RequestID adds a unique request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), errorhandler.RequestIDKey, requestID)
		ctx = logger.WithFields(ctx, "request_id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
