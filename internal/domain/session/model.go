package session

import (
	"time"

	"github.com/sorewa/gatehouse/internal/database"
)

// Session is one device's authenticated presence for a user. A partial
// unique index on (user_id) WHERE is_active enforces at most one
// active row per user; see internal/migrations.
type Session struct {
	database.BaseModel

	UserID            string    `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	SessionID         string    `gorm:"column:session_id;uniqueIndex;not null" json:"session_id"`
	DeviceFingerprint string    `gorm:"column:device_fingerprint;not null" json:"device_fingerprint"`
	IsActive          bool      `gorm:"column:is_active;default:false" json:"is_active"`
	LastActive        time.Time `gorm:"column:last_active" json:"last_active"`
}

func (Session) TableName() string {
	return "sessions"
}
