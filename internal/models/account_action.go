package models

import (
	"time"

	"tvicl/server/internal/utils"
)

// AccountActionType defines the actions a user confirms through an emailed link.
type AccountActionType string

const (
	ActionVerifyEmail   AccountActionType = "verify_email"
	ActionPasswordReset AccountActionType = "password_reset"
)

// AccountAction is a one-time token sent by email. Only the SHA-256 hash of the
// token is stored; the raw value exists in the email link alone.
type AccountAction struct {
	Base      `bson:",inline"`
	UserID    utils.SixID       `bson:"user_id" json:"user_id"`
	Type      AccountActionType `bson:"type" json:"type"`
	TokenHash string            `bson:"token_hash" json:"-"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time         `bson:"expires_at" json:"expires_at"`
	Executed  *time.Time        `bson:"executed,omitempty" json:"executed,omitempty"`
}
