package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// RBAC errors.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrAdminNotFound    = errors.New("admin not found")
	ErrAdminDisabled    = errors.New("admin is disabled")
)

// Permission represents an action that can be performed.
type Permission string

const (
	// PermissionViewLogs allows listing logs and their stats.
	PermissionViewLogs Permission = "view_logs"
	// PermissionExportLogs allows downloading CSV exports.
	PermissionExportLogs Permission = "export_logs"
	// PermissionWriteLogs allows appending log entries.
	PermissionWriteLogs Permission = "write_logs"
	// PermissionTriggerCleanup allows running a manual retention purge.
	PermissionTriggerCleanup Permission = "trigger_cleanup"
)

// rolePermissions defines which permissions each role has.
var rolePermissions = map[models.AdminRole][]Permission{
	models.RoleSuperAdmin: {
		PermissionViewLogs,
		PermissionExportLogs,
		PermissionWriteLogs,
		PermissionTriggerCleanup,
	},
	models.RoleAdmin: {
		PermissionViewLogs,
		PermissionExportLogs,
		PermissionWriteLogs,
	},
	models.RoleModerator: {
		PermissionViewLogs,
	},
}

// PermissionsFor returns the permissions granted to role.
func PermissionsFor(role models.AdminRole) []Permission {
	return append([]Permission{}, rolePermissions[role]...)
}

// HasPermission reports whether role grants permission.
func HasPermission(role models.AdminRole, permission Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckRolePermission returns ErrPermissionDenied unless role grants permission.
func CheckRolePermission(role models.AdminRole, permission Permission) error {
	if !HasPermission(role, permission) {
		return ErrPermissionDenied
	}
	return nil
}

// RBACService resolves callers against the authorization store.
type RBACService struct {
	admins store.AdminStore
	logger *slog.Logger
}

// NewRBACService creates a new RBAC service.
func NewRBACService(admins store.AdminStore, logger *slog.Logger) *RBACService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RBACService{
		admins: admins,
		logger: logger,
	}
}

// Authorize loads the admin and checks it holds permission.
func (s *RBACService) Authorize(ctx context.Context, adminID string, permission Permission) (*models.Admin, error) {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("loading admin: %w", err)
	}
	if admin == nil {
		return nil, ErrAdminNotFound
	}
	if admin.Disabled {
		return nil, ErrAdminDisabled
	}
	if err := CheckRolePermission(admin.Role, permission); err != nil {
		s.logger.Debug("permission check failed",
			"admin_id", adminID,
			"role", admin.Role,
			"permission", permission,
		)
		return nil, err
	}
	return admin, nil
}
