package models

import (
	"time"

	"github.com/google/uuid"
)

// Role of a member within an organization
type Role string

const (
	RoleOrgAdmin  Role = "org_admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// StaffRoles may act on content they do not own
var StaffRoles = []Role{RoleOrgAdmin, RoleModerator}

// MembershipStatus of a member within an organization
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipLeft      MembershipStatus = "left"
)

// Membership links a user to an organization
type Membership struct {
	OrgID       uuid.UUID        `json:"orgId" db:"org_id"`
	UserID      uuid.UUID        `json:"userId" db:"user_id"`
	DisplayName string           `json:"displayName" db:"display_name"`
	Role        Role             `json:"role" db:"role"`
	Status      MembershipStatus `json:"status" db:"status"`
	IsBanned    bool             `json:"isBanned" db:"is_banned"`
	Notes       string           `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// IsActive reports whether the membership grants access
func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive && !m.IsBanned
}

// HasRole reports whether the active membership carries one of roles
func (m *Membership) HasRole(roles ...Role) bool {
	if !m.IsActive() {
		return false
	}
	for _, r := range roles {
		if m.Role == r {
			return true
		}
	}
	return false
}
