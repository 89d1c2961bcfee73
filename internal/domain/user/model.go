package user

import (
	"time"

	"github.com/sorewa/gatehouse/internal/database"
)

// User is an account created through token-gated sign-up. Token holds
// the opaque (hashed) value of the invitation token the account
// consumed; it is cleared when the token expires.
type User struct {
	database.BaseModel
	Username          string     `gorm:"column:username;unique;not null" json:"username"`
	Password          string     `gorm:"column:password;not null" json:"-"`
	Token             string     `gorm:"column:token" json:"token"`
	TokenExpiry       *time.Time `gorm:"column:token_expiry" json:"token_expiry"`
	DeviceFingerprint string     `gorm:"column:device_fingerprint" json:"device_fingerprint"`
}

func (User) TableName() string {
	return "users"
}
