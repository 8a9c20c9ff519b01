package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	apierrors "github.com/narvanalabs/logkeeper/internal/api/errors"
	"github.com/narvanalabs/logkeeper/internal/auth"
	"github.com/narvanalabs/logkeeper/internal/models"
)

// Context keys for caller information.
type contextKey string

const (
	// AdminIDKey is the context key for the authenticated admin ID.
	AdminIDKey contextKey = "admin_id"
	// AdminEmailKey is the context key for the authenticated admin email.
	AdminEmailKey contextKey = "admin_email"
	// AdminKey is the context key for the admin record loaded by RequirePermission.
	AdminKey contextKey = "admin"
)

// GetAdminID extracts the admin ID from the request context.
func GetAdminID(ctx context.Context) string {
	if v, ok := ctx.Value(AdminIDKey).(string); ok {
		return v
	}
	return ""
}

// GetAdminEmail extracts the admin email from the request context.
func GetAdminEmail(ctx context.Context) string {
	if v, ok := ctx.Value(AdminEmailKey).(string); ok {
		return v
	}
	return ""
}

// GetAdmin returns the admin authorized for this request, if any.
func GetAdmin(ctx context.Context) *models.Admin {
	if v, ok := ctx.Value(AdminKey).(*models.Admin); ok {
		return v
	}
	return nil
}

// WithAdminID returns a context carrying the given admin ID.
func WithAdminID(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, AdminIDKey, adminID)
}

// AuthMiddleware handles JWT authentication.
type AuthMiddleware struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(authService *auth.Service, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		logger:      logger,
	}
}

// Authenticate is a middleware that validates bearer tokens.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, r, apierrors.NewUnauthenticated("Missing authentication"))
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			m.logger.Debug("JWT validation failed", "error", err)
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, r, apierrors.NewUnauthenticated("Token has expired"))
				return
			}
			writeError(w, r, apierrors.NewUnauthenticated("Invalid token"))
			return
		}

		ctx := WithAdminID(r.Context(), claims.AdminID)
		ctx = context.WithValue(ctx, AdminEmailKey, claims.Email)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission returns a middleware that loads the authenticated admin and
// checks it holds permission. The role in the token is not trusted.
func RequirePermission(rbac *auth.RBACService, permission auth.Permission, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			adminID := GetAdminID(r.Context())
			if adminID == "" {
				writeError(w, r, apierrors.NewUnauthenticated("Authentication required"))
				return
			}

			admin, err := rbac.Authorize(r.Context(), adminID, permission)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrPermissionDenied),
				errors.Is(err, auth.ErrAdminNotFound),
				errors.Is(err, auth.ErrAdminDisabled):
				logger.Debug("permission denied",
					"admin_id", adminID,
					"permission", permission,
					"reason", err,
				)
				writeError(w, r, apierrors.NewPermissionDenied("Permission denied"))
				return
			default:
				logger.Error("failed to authorize request", "admin_id", adminID, "error", err)
				writeError(w, r, apierrors.NewInternal("Failed to authorize request"))
				return
			}

			ctx := context.WithValue(r.Context(), AdminKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err *apierrors.APIError) {
	apierrors.WriteErrorWithRequestID(w, err, middleware.GetReqID(r.Context()))
}
