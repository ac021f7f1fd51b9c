package models

import (
	"time"
)

// Activity types recorded in the audit trail. The set is open: callers may
// record their own types (for example REPORT_EXECUTED from the scheduler).
const (
	ActivityLoginSuccess         = "LOGIN_SUCCESS"
	ActivityLoginFailed          = "LOGIN_FAILED"
	ActivityUserCreated          = "USER_CREATED"
	ActivityUserUpdated          = "USER_UPDATED"
	ActivityUserDeleted          = "USER_DELETED"
	ActivityUserLocked           = "USER_LOCKED"
	ActivityUserUnlocked         = "USER_UNLOCKED"
	ActivityUserActivated        = "USER_ACTIVATED"
	ActivityUserDeactivated      = "USER_DEACTIVATED"
	ActivityPasswordChanged      = "PASSWORD_CHANGED"
	ActivityPasswordChangeFailed = "PASSWORD_CHANGE_FAILED"
	ActivityPasswordReset        = "PASSWORD_RESET"
	ActivityRoleAssigned         = "ROLE_ASSIGNED"
	ActivityRoleRevoked          = "ROLE_REVOKED"
	ActivityRoleCreated          = "ROLE_CREATED"
	ActivityRoleUpdated          = "ROLE_UPDATED"
	ActivityPermissionGranted    = "PERMISSION_GRANTED"
	ActivityReportExecuted       = "REPORT_EXECUTED"
)

// OriginMetadata describes where a request came from.
type OriginMetadata struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ActivityEvent is what callers hand to the auditor. UserID is nil when the
// actor is unknown; Username is always kept as a snapshot.
type ActivityEvent struct {
	UserID       *int64         `json:"user_id,omitempty"`
	Username     string         `json:"username,omitempty" validate:"max=50"`
	ActivityType string         `json:"activity_type" validate:"required,max=50"`
	Description  string         `json:"description,omitempty" validate:"max=500"`
	Origin       OriginMetadata `json:"origin"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty" validate:"max=500"`
}

// ActivityLogEntry is a persisted, append-only audit row. UserID becomes nil
// if the referenced user row is ever removed; Username survives.
type ActivityLogEntry struct {
	ID           int64     `json:"log_id" db:"log_id"`
	UserID       *int64    `json:"user_id,omitempty" db:"user_id"`
	Username     *string   `json:"username,omitempty" db:"username"`
	ActivityType string    `json:"activity_type" db:"activity_type"`
	Description  *string   `json:"description,omitempty" db:"activity_description"`
	IPAddress    *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    *string   `json:"user_agent,omitempty" db:"user_agent"`
	ActivityDate time.Time `json:"activity_date" db:"activity_date"`
	Success      bool      `json:"success" db:"success"`
	ErrorMessage *string   `json:"error_message,omitempty" db:"error_message"`
}

// NewActivityLogEntry maps an event onto a row, turning empty strings into NULLs.
func NewActivityLogEntry(e ActivityEvent) *ActivityLogEntry {
	return &ActivityLogEntry{
		UserID:       e.UserID,
		Username:     nullableString(e.Username),
		ActivityType: e.ActivityType,
		Description:  nullableString(e.Description),
		IPAddress:    nullableString(e.Origin.IPAddress),
		UserAgent:    nullableString(e.Origin.UserAgent),
		Success:      e.Success,
		ErrorMessage: nullableString(e.ErrorMessage),
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Actor identifies who performed an action. Administrative operations record
// the actor's username in created_by/modified_by columns and the audit trail.
type Actor struct {
	UserID   *int64
	Username string
	Origin   OriginMetadata
}

// SystemActor is used by bootstrap and operator tooling.
func SystemActor() Actor {
	return Actor{Username: "SYSTEM"}
}

// Name is the value written to created_by/modified_by.
func (a Actor) Name() string {
	if a.Username == "" {
		return "SYSTEM"
	}
	return a.Username
}
