package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/sorewa/gatehouse/internal/database"
)

// Duration is the access period an invitation token grants
type Duration string

const (
	Duration3Month Duration = "3month"
	Duration6Month Duration = "6month"
	Duration1Year  Duration = "1year"
)

// Valid reports whether d is a known duration
func (d Duration) Valid() bool {
	switch d {
	case Duration3Month, Duration6Month, Duration1Year:
		return true
	default:
		return false
	}
}

// ExpiryFrom returns the access expiry for a token issued at t
func (d Duration) ExpiryFrom(t time.Time) time.Time {
	switch d {
	case Duration3Month:
		return t.AddDate(0, 3, 0)
	case Duration6Month:
		return t.AddDate(0, 6, 0)
	default:
		return t.AddDate(1, 0, 0)
	}
}

// Token is a single-use invitation code. Only the SHA-256 of the code
// is stored; the plain value is shown once, at creation.
type Token struct {
	database.BaseModel
	Token      string    `gorm:"column:token;unique;not null" json:"token"`
	Duration   Duration  `gorm:"column:duration;not null" json:"duration"`
	ExpiryDate time.Time `gorm:"column:expiry_date;not null" json:"expiry_date"`
	IsUsed     bool      `gorm:"column:is_used;default:false" json:"is_used"`
	UsedBy     string    `gorm:"column:used_by" json:"used_by"`
}

func (Token) TableName() string {
	return "tokens"
}

// Expired reports whether the token's access period has passed at t
func (t *Token) Expired(at time.Time) bool {
	return at.After(t.ExpiryDate)
}

// generateValue produces a new random invitation code
func generateValue() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashValue maps a plain invitation code to its at-rest form
func HashValue(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}
