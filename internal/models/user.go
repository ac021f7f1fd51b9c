package models

import (
	"time"
)

// User is an account row. Users are never physically deleted by the service;
// deactivation keeps their audit trail intact.
type User struct {
	ID                  int64      `db:"user_id"`
	Username            string     `db:"username"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	FirstName           *string    `db:"first_name"`
	LastName            *string    `db:"last_name"`
	IsActive            bool       `db:"is_active"`
	IsLocked            bool       `db:"is_locked"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LastLoginDate       *time.Time `db:"last_login_date"`
	PasswordChangedDate time.Time  `db:"password_changed_date"`
	MustChangePassword  bool       `db:"must_change_password"`
	CreatedBy           string     `db:"created_by"`
	CreatedDate         time.Time  `db:"created_date"`
	ModifiedBy          *string    `db:"modified_by"`
	ModifiedDate        *time.Time `db:"modified_date"`
}

// CanAuthenticate reports whether the account state allows a login attempt to
// reach credential verification.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.IsLocked
}

// UserInfo is the outward view of a user: no password hash, roles attached.
type UserInfo struct {
	ID                  int64      `json:"user_id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	FirstName           *string    `json:"first_name,omitempty"`
	LastName            *string    `json:"last_name,omitempty"`
	IsActive            bool       `json:"is_active"`
	IsLocked            bool       `json:"is_locked"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LastLoginDate       *time.Time `json:"last_login_date,omitempty"`
	PasswordChangedDate time.Time  `json:"password_changed_date"`
	MustChangePassword  bool       `json:"must_change_password"`
	CreatedBy           string     `json:"created_by"`
	CreatedDate         time.Time  `json:"created_date"`
	Roles               []Role     `json:"roles"`
}

// NewUserInfo strips credentials from u and attaches roles.
func NewUserInfo(u *User, roles []Role) *UserInfo {
	if roles == nil {
		roles = []Role{}
	}
	return &UserInfo{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		IsActive:            u.IsActive,
		IsLocked:            u.IsLocked,
		FailedLoginAttempts: u.FailedLoginAttempts,
		LastLoginDate:       u.LastLoginDate,
		PasswordChangedDate: u.PasswordChangedDate,
		MustChangePassword:  u.MustChangePassword,
		CreatedBy:           u.CreatedBy,
		CreatedDate:         u.CreatedDate,
		Roles:               roles,
	}
}

// CreateUserInput carries everything needed to provision an account.
type CreateUserInput struct {
	Username           string   `validate:"required,username"`
	Email              string   `validate:"required,email,max=100"`
	Password           string   `validate:"required"`
	FirstName          *string  `validate:"omitempty,max=50"`
	LastName           *string  `validate:"omitempty,max=50"`
	Roles              []string `validate:"dive,required"`
	MustChangePassword bool
}

// UpdateProfileInput holds optional profile changes; nil fields are left alone.
type UpdateProfileInput struct {
	Email     *string `validate:"omitempty,email,max=100"`
	FirstName *string `validate:"omitempty,max=50"`
	LastName  *string `validate:"omitempty,max=50"`
}

// IsEmpty reports whether the input changes nothing.
func (in UpdateProfileInput) IsEmpty() bool {
	return in.Email == nil && in.FirstName == nil && in.LastName == nil
}

// LockoutUpdate is the state of the failure counter after an atomic increment.
type LockoutUpdate struct {
	FailedAttempts int
	Locked         bool
}
