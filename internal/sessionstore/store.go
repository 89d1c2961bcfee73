// Package sessionstore persists the single local session record each
// client holds. The record is overwritten wholesale on every update
// and removed wholesale on logout or invalidation. The Store is passed
// explicitly as a capability object so tests can run several simulated
// clients side by side.
package sessionstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a client has no session record
var ErrNotFound = errors.New("no session record")

// Record is the local session copy a signed-in client keeps
type Record struct {
	Username          string     `json:"username"`
	UserID            string     `json:"user_id"`
	Token             string     `json:"token"`
	TokenExpiry       *time.Time `json:"token_expiry,omitempty"`
	DeviceFingerprint string     `json:"device_fingerprint"`
	SessionID         string     `json:"session_id"`
	CreatedAt         time.Time  `json:"created_at"`
	IsAdmin           bool       `json:"is_admin,omitempty"`
}

// Store persists one Record per client key
type Store interface {
	Save(ctx context.Context, key string, rec Record) error
	Load(ctx context.Context, key string) (*Record, error)
	// Clear removes a record; clearing an absent record is a no-op.
	Clear(ctx context.Context, key string) error
}
