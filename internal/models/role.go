package models

import "time"

// Seeded role identifiers. The catalog is data: more roles can be added at runtime.
const (
	RoleAdmin          = "ADMIN"
	RoleReportManager  = "REPORT_MANAGER"
	RoleReportViewer   = "REPORT_VIEWER"
	RoleReportExecutor = "REPORT_EXECUTOR"
)

type Role struct {
	ID          string    `json:"role_id" db:"role_id" validate:"required,max=50,uppercase"`
	Name        string    `json:"role_name" db:"role_name" validate:"required,max=100"`
	Description *string   `json:"description,omitempty" db:"description" validate:"omitempty,max=500"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedDate time.Time `json:"created_date" db:"created_date"`
}

// UserRole is one (user, role) assignment.
type UserRole struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	RoleID       string    `json:"role_id" db:"role_id"`
	AssignedBy   string    `json:"assigned_by" db:"assigned_by"`
	AssignedDate time.Time `json:"assigned_date" db:"assigned_date"`
}

// RoleIDs returns the identifiers of roles in order.
func RoleIDs(roles []Role) []string {
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// HasRole reports whether roleID is among roles.
func HasRole(roles []Role, roleID string) bool {
	for _, r := range roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}
