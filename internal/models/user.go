package models

import (
	"slices"
	"time"

	"tvicl/server/internal/utils"
)

// Role is a capability a user account can hold. A user may hold several and acts as one at a time.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAgent  Role = "agent"
	RoleEstate Role = "estate"
	RoleAdmin  Role = "admin"
)

var roles = enum[Role]{RoleBuyer, RoleSeller, RoleAgent, RoleEstate, RoleAdmin}

func (r Role) IsValid() bool   { return roles.has(r) }
func (Role) Options() []string { return roles.options() }

// ListingRoles may create property listings.
var ListingRoles = []Role{RoleSeller, RoleAgent, RoleEstate, RoleAdmin}

// User represents an account in the system.
type User struct {
	Base             `bson:",inline"`
	FullName         string        `bson:"full_name" json:"fullName"`
	Email            string        `bson:"email" json:"email"`
	Phone            string        `bson:"phone" json:"phone"`
	PasswordHash     string        `bson:"password" json:"-"`
	Roles            []Role        `bson:"roles" json:"roles"`
	ActiveRole       Role          `bson:"active_role" json:"activeRole"`
	ProfilePhoto     string        `bson:"profile_photo" json:"profilePhoto"`
	AgentProfile     *utils.SixID  `bson:"agent_profile,omitempty" json:"agentProfile,omitempty"`
	EstateProfile    *utils.SixID  `bson:"estate_profile,omitempty" json:"estateProfile,omitempty"`
	SavedProperties  []utils.SixID `bson:"saved_properties" json:"savedProperties"`
	Verified         bool          `bson:"verified" json:"verified"`
	RefreshTokenHash string        `bson:"refresh_token_hash,omitempty" json:"-"`
	LastLogin        *time.Time    `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
	CreatedAt        time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updatedAt"`
}

func (u *User) HasRole(r Role) bool {
	return slices.Contains(u.Roles, r)
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}
