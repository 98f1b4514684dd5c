package errorhandler

import (
	"context"
	"net/http"

	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
)

// RequestIDKey is the context key the request id middleware stores under.
type requestIDKey struct{}

var RequestIDKey = requestIDKey{}

// HandleError logs err and writes a generic JSON error.
// 5xx messages are replaced by the generic internal error text.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	event := logger.FromContext(ctx).Error()
	if status < http.StatusInternalServerError {
		event = logger.FromContext(ctx).Warn()
	}
	event.
		Str("request_id", GetRequestID(ctx)).
		Int("status_code", status).
		Str("error_message", message).
		Err(err).
		Msg("Request error")

	if status >= http.StatusInternalServerError {
		message = response.MsgInternalError
	}
	response.Error(w, status, message)
}

// Internal logs err and responds 500.
func Internal(ctx context.Context, w http.ResponseWriter, err error) {
	HandleError(ctx, w, http.StatusInternalServerError, response.MsgInternalError, err)
}

// LogExternalServiceError logs errors from external service calls
func LogExternalServiceError(ctx context.Context, service, endpoint string, statusCode int, err error) {
	logger.FromContext(ctx).Error().
		Str("request_id", GetRequestID(ctx)).
		Str("external_service", service).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Err(err).
		Msg("External service error")
}

// GetRequestID returns the id set by the request id middleware.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}
