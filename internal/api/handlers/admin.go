package handlers

import (
	"log/slog"
	"net/http"

	"github.com/narvanalabs/logkeeper/internal/api/middleware"
	"github.com/narvanalabs/logkeeper/internal/auth"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// AdminHandler serves the caller's own admin record.
type AdminHandler struct {
	admins store.AdminStore
	logger *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admins store.AdminStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admins: admins,
		logger: logger,
	}
}

// MeResponse is the caller's admin record and what its role allows.
type MeResponse struct {
	*models.Admin
	Permissions []auth.Permission `json:"permissions"`
}

// Me handles GET /v1/me - returns the authenticated admin and its permissions.
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	if adminID == "" {
		WriteUnauthenticated(w, r, "Authentication required")
		return
	}

	admin, err := h.admins.GetByID(r.Context(), adminID)
	if err != nil {
		h.logger.Error("failed to get admin", "error", err, "admin_id", adminID)
		WriteInternalError(w, r, "Failed to get admin")
		return
	}
	if admin == nil {
		WriteNotFound(w, r, "Admin not found")
		return
	}

	perms := []auth.Permission{}
	if !admin.Disabled {
		perms = auth.PermissionsFor(admin.Role)
	}
	WriteJSON(w, http.StatusOK, &MeResponse{Admin: admin, Permissions: perms})
}
