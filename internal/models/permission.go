package models

import "time"

// Capability is one of the four grantable report actions.
type Capability string

const (
	CapabilityView    Capability = "view"
	CapabilityExecute Capability = "execute"
	CapabilityModify  Capability = "modify"
	CapabilityDelete  Capability = "delete"
)

// ParseCapability maps a lower-case name to a Capability.
func ParseCapability(s string) (Capability, bool) {
	switch Capability(s) {
	case CapabilityView, CapabilityExecute, CapabilityModify, CapabilityDelete:
		return Capability(s), true
	}
	return "", false
}

// ReportPermission grants a role capabilities on one report. There is at most
// one row per (role, report).
type ReportPermission struct {
	ID          int64     `json:"permission_id" db:"permission_id"`
	RoleID      string    `json:"role_id" db:"role_id"`
	ReportID    string    `json:"report_id" db:"report_id"`
	CanView     bool      `json:"can_view" db:"can_view"`
	CanExecute  bool      `json:"can_execute" db:"can_execute"`
	CanModify   bool      `json:"can_modify" db:"can_modify"`
	CanDelete   bool      `json:"can_delete" db:"can_delete"`
	GrantedBy   string    `json:"granted_by" db:"granted_by"`
	GrantedDate time.Time `json:"granted_date" db:"granted_date"`
}

// Capabilities is a user's effective access to a report: the OR of every grant
// held through any of the user's roles. The zero value means no access.
type Capabilities struct {
	View    bool `json:"view"`
	Execute bool `json:"execute"`
	Modify  bool `json:"modify"`
	Delete  bool `json:"delete"`
}

// Merge ORs other into c.
func (c Capabilities) Merge(other Capabilities) Capabilities {
	return Capabilities{
		View:    c.View || other.View,
		Execute: c.Execute || other.Execute,
		Modify:  c.Modify || other.Modify,
		Delete:  c.Delete || other.Delete,
	}
}

func (c Capabilities) Allows(capability Capability) bool {
	switch capability {
	case CapabilityView:
		return c.View
	case CapabilityExecute:
		return c.Execute
	case CapabilityModify:
		return c.Modify
	case CapabilityDelete:
		return c.Delete
	}
	return false
}

func (p ReportPermission) Capabilities() Capabilities {
	return Capabilities{View: p.CanView, Execute: p.CanExecute, Modify: p.CanModify, Delete: p.CanDelete}
}
