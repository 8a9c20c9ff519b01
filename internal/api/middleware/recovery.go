package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	apierrors "github.com/narvanalabs/logkeeper/internal/api/errors"
)

// Recovery returns a middleware that recovers from panics and logs the error.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := middleware.GetReqID(r.Context())
					apiErr := apierrors.NewInternal("An unexpected error occurred")
					entry := apierrors.NewErrorLogEntry(apiErr, requestID)

					attrs := append(entry.ToSlogAttrs(),
						"error", rec,
						"method", r.Method,
						"path", r.URL.Path,
					)
					logger.Error("panic recovered", attrs...)

					apierrors.WriteErrorWithRequestID(w, apiErr, requestID)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
