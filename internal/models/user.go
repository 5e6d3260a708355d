package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents an administrator role in the dashboard.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
)

// WorkflowRoles may approve, reject and override registrations.
var WorkflowRoles = []Role{RoleSuperAdmin, RoleAdmin}

// ReadRoles may browse registrations in the dashboard.
var ReadRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleEditor}

// HasPermission reports whether role is one of allowed.
func HasPermission(role Role, allowed ...Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// Actor is the authenticated administrator performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Administrator is a dashboard user.
type Administrator struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdministratorPublic is Administrator without sensitive fields for API responses.
type AdministratorPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Administrator to AdministratorPublic.
func (a *Administrator) ToPublic() AdministratorPublic {
	return AdministratorPublic{
		ID:        a.ID,
		Email:     a.Email,
		FullName:  a.FullName,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}
