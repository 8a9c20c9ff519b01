package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store/memory"
)

func genRole() gopter.Gen {
	return gen.OneConstOf(models.RoleSuperAdmin, models.RoleAdmin, models.RoleModerator, models.AdminRole("viewer"))
}

func genPermission() gopter.Gen {
	return gen.OneConstOf(PermissionViewLogs, PermissionExportLogs, PermissionWriteLogs, PermissionTriggerCleanup)
}

// Only super admins may trigger a cleanup, and no unknown role holds any permission.
func TestRolePermissionMatrix(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("trigger_cleanup is exclusive to super_admin", prop.ForAll(
		func(role models.AdminRole) bool {
			return HasPermission(role, PermissionTriggerCleanup) == (role == models.RoleSuperAdmin)
		},
		genRole(),
	))

	properties.Property("unknown roles hold no permissions", prop.ForAll(
		func(perm Permission) bool {
			return !HasPermission(models.AdminRole("viewer"), perm) && !HasPermission("", perm)
		},
		genPermission(),
	))

	properties.Property("super_admin holds every permission", prop.ForAll(
		func(perm Permission) bool {
			return CheckRolePermission(models.RoleSuperAdmin, perm) == nil
		},
		genPermission(),
	))

	properties.TestingRun(t)
}

func TestRBACServiceAuthorize(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	admins := st.Admins()

	for _, a := range []*models.Admin{
		{ID: "root", Email: "root@example.com", Role: models.RoleSuperAdmin},
		{ID: "mod", Email: "mod@example.com", Role: models.RoleModerator},
		{ID: "gone", Email: "gone@example.com", Role: models.RoleSuperAdmin, Disabled: true},
	} {
		if err := admins.Upsert(ctx, a); err != nil {
			t.Fatalf("upsert %s: %v", a.ID, err)
		}
	}

	svc := NewRBACService(admins, nil)

	tests := []struct {
		name    string
		adminID string
		perm    Permission
		wantErr error
	}{
		{"super admin triggers cleanup", "root", PermissionTriggerCleanup, nil},
		{"moderator views logs", "mod", PermissionViewLogs, nil},
		{"moderator cannot export", "mod", PermissionExportLogs, ErrPermissionDenied},
		{"unknown admin", "nobody", PermissionViewLogs, ErrAdminNotFound},
		{"disabled admin", "gone", PermissionViewLogs, ErrAdminDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin, err := svc.Authorize(ctx, tt.adminID, tt.perm)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if admin.ID != tt.adminID {
				t.Errorf("expected admin %s, got %s", tt.adminID, admin.ID)
			}
		})
	}
}
