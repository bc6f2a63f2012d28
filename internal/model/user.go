package model

import (
	"time"
)

// User roles. A "tenant" user administers its own store; a "user" shops
// across stores.
const (
	RoleUser   = "user"
	RoleTenant = "tenant"
)

// User represents the user model stored in the shared store
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"`
	Name      string    `json:"name" gorm:"type:varchar(100)"`
	Role      string    `json:"role" gorm:"type:varchar(20);not null;default:user"`
	TenantID  *uint     `json:"tenant_id,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserToken is an opaque session token. Tokens are revoked by moving
// ExpiresAt to the current time, never deleted, so recent revocations
// stay auditable. Active marks the token currently holding the user's
// single session slot: a partial unique index on (user_id) where
// active makes concurrent logins converge on one token.
type UserToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:uniq_live_user_token,where:active;not null"`
	Token     string    `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	Active    bool      `json:"-" gorm:"not null;default:true"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the token is no longer valid
func (t *UserToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
