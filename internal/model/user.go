package model

import (
	"fmt"
	"time"
)

// User represents an operator account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// RoleAdmin holds every capability and manages users and roles.
const RoleAdmin = "admin"

// RoleSystem is the actor recorded for unattended transitions.
const RoleSystem = "system"

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateRoleName checks that a role name is usable as a lookup key.
func ValidateRoleName(role string) error {
	if role == "" || len(role) > 64 {
		return fmt.Errorf("role name must be 1-64 characters")
	}
	if role == RoleSystem {
		return fmt.Errorf("role name %q is reserved", role)
	}
	return nil
}

// UserAuditAction names a change to an operator account.
type UserAuditAction string

const (
	UserAuditCreate     UserAuditAction = "CreateUser"
	UserAuditUpdateRole UserAuditAction = "UpdateRole"
	UserAuditDelete     UserAuditAction = "DeleteUser"
)

// Valid reports whether a is a known user audit action.
func (a UserAuditAction) Valid() bool {
	switch a {
	case UserAuditCreate, UserAuditUpdateRole, UserAuditDelete:
		return true
	}
	return false
}

// RoleAuditLog is an append-only record of an account being created,
// re-roled or deleted.
type RoleAuditLog struct {
	ID                int64           `json:"id"`
	TargetUserID      int64           `json:"targetUserId"`
	TargetUsername    string          `json:"targetUsername"`
	TargetEmail       string          `json:"targetEmail,omitempty"`
	OldRole           string          `json:"oldRole,omitempty"`
	NewRole           string          `json:"newRole,omitempty"`
	Action            UserAuditAction `json:"action"`
	PerformedByUserID string          `json:"performedByUserId"`
	PerformedByEmail  string          `json:"performedByEmail,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// RoleAuditFilter narrows a user audit query. Target and PerformedBy match
// substrings; zero values are ignored.
type RoleAuditFilter struct {
	Action      UserAuditAction
	Target      string
	PerformedBy string
	Since       time.Time
	Until       time.Time
	Page        int
	PageSize    int
}

// RoleAuditPage is one page of user audit entries.
type RoleAuditPage struct {
	Items []RoleAuditLog `json:"items"`
	Total int            `json:"total"`
}
