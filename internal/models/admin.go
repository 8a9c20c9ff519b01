package models

import "time"

// AdminRole is the privilege tier of a console administrator.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super_admin" // Top tier, may trigger retention runs
	RoleAdmin      AdminRole = "admin"       // Reads and exports logs
	RoleModerator  AdminRole = "moderator"   // Reads logs only
)

// Valid reports whether r is a known role.
func (r AdminRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Admin is a record in the authorization store.
type Admin struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      AdminRole `json:"role"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Performer returns the structured actor for audit records written on behalf of the admin.
func (a *Admin) Performer() Performer {
	return Performer{
		ID:    a.ID,
		Email: a.Email,
		Name:  a.Name,
		Role:  string(a.Role),
	}
}
