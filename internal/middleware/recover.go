package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
)

// Recover turns a handler panic into a 500. http.ErrAbortHandler is re-raised
// so the server can abort the connection as usual.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.FromContext(r.Context()).Error().
				Interface("error", rec).
				Str("stack", string(debug.Stack())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("user_id", GetUserID(r.Context())).
				Msg("Panic recovered")

			response.InternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}
