package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/narvanalabs/logkeeper/internal/api/middleware"
	"github.com/narvanalabs/logkeeper/internal/cleanup"
)

// CleanupHandler handles manual retention runs.
type CleanupHandler struct {
	cleanupService *cleanup.Service
	logger         *slog.Logger
}

// NewCleanupHandler creates a new cleanup handler.
func NewCleanupHandler(cleanupSvc *cleanup.Service, logger *slog.Logger) *CleanupHandler {
	return &CleanupHandler{
		cleanupService: cleanupSvc,
		logger:         logger,
	}
}

// CleanupLogsRequest is the body of a manual cleanup. Days defaults to the policy window.
type CleanupLogsRequest struct {
	Days *int `json:"days,omitempty"`
}

// CleanupLogs handles POST /v1/admin/cleanup/logs - purges both streams now.
func (h *CleanupHandler) CleanupLogs(w http.ResponseWriter, r *http.Request) {
	var req CleanupLogsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}

	callerID := middleware.GetAdminID(r.Context())
	h.logger.Info("manual log cleanup requested", "admin_id", callerID, "days", req.Days)

	result, err := h.cleanupService.RunManual(r.Context(), callerID, req.Days)
	switch {
	case err == nil:
	case errors.Is(err, cleanup.ErrUnauthenticated):
		WriteUnauthenticated(w, r, "Authentication required")
		return
	case errors.Is(err, cleanup.ErrPermissionDenied):
		WritePermissionDenied(w, r, "Only super admins can trigger log cleanup")
		return
	case errors.Is(err, cleanup.ErrInvalidDays):
		WriteBadRequest(w, r, err.Error())
		return
	default:
		h.logger.Error("manual log cleanup failed", "admin_id", callerID, "error", err)
		WriteInternalError(w, r, err.Error())
		return
	}

	h.logger.Info("manual log cleanup completed",
		"admin_id", callerID,
		"activity_logs_deleted", result.ActivityLogsDeleted,
		"system_logs_deleted", result.SystemLogsDeleted,
		"cutoff_date", result.CutoffDate,
	)

	WriteJSON(w, http.StatusOK, result)
}
