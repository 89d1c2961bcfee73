package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sorewa/gatehouse/internal/database"
	"gorm.io/gorm"
)

// ErrConcurrentSessionConflict is returned when a concurrent sign-in
// for the same user won the newest-wins reconciliation.
var ErrConcurrentSessionConflict = errors.New("concurrent session conflict")

// Registry owns the single-active-session invariant: at most one
// active session row per user, and a validated session must present
// the device fingerprint it was created with.
type Registry struct {
	repo    Repository
	timeout time.Duration
}

// NewRegistry creates a session registry. timeout bounds every store
// round-trip; zero means 5 seconds.
func NewRegistry(repo Repository, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{repo: repo, timeout: timeout}
}

// newSessionID generates an opaque session identifier
func newSessionID() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (r *Registry) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Create establishes a new active session for the user, superseding
// any existing one. Clients cannot lock, so the write sequence is
// re-read and reconciled afterwards: if a concurrent sign-in left more
// than one active row, every row but the newest is deactivated, and
// the call fails with ErrConcurrentSessionConflict when the survivor
// is not the row just inserted. On success exactly one active session
// exists for the user and it is the one returned.
func (r *Registry) Create(ctx context.Context, userID uuid.UUID, fingerprint string) (string, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.repo.DeactivateAllForUser(ctx, userID); err != nil {
		return "", database.Unavailable(err)
	}

	sid, err := newSessionID()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	sess := &Session{
		UserID:            userID.String(),
		SessionID:         sid,
		DeviceFingerprint: fingerprint,
		IsActive:          true,
		LastActive:        now,
	}
	if err := r.repo.Insert(ctx, sess); err != nil {
		// The partial unique index rejects a second active row when a
		// concurrent sign-in got there first.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", ErrConcurrentSessionConflict
		}
		return "", database.Unavailable(err)
	}

	active, err := r.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return "", database.Unavailable(err)
	}

	if len(active) == 0 {
		// A concurrent Create's deactivate pass landed after our
		// insert; its own row is the survivor once it lands.
		return "", ErrConcurrentSessionConflict
	}

	if len(active) > 1 {
		newest := active[0]
		for _, s := range active[1:] {
			if s.CreatedAt.After(newest.CreatedAt) {
				newest = s
			}
		}
		if err := r.repo.DeactivateExcept(ctx, userID, newest.SessionID); err != nil {
			return "", database.Unavailable(err)
		}
		if newest.SessionID != sid {
			return "", ErrConcurrentSessionConflict
		}
		return sid, nil
	}

	if len(active) == 1 && active[0].SessionID != sid {
		// Our row was already superseded by a newer sign-in.
		return "", ErrConcurrentSessionConflict
	}

	return sid, nil
}

// Validate checks that (sessionID, userID) names an active session and
// that the presented fingerprint matches the one stored at creation.
// A mismatched fingerprint forcibly deactivates the row. The
// last_active touch is best-effort: failing to record it does not
// invalidate the session.
func (r *Registry) Validate(ctx context.Context, sessionID string, userID uuid.UUID, fingerprint string) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	sess, err := r.repo.FindActive(ctx, sessionID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, database.Unavailable(err)
	}

	if sess.DeviceFingerprint != fingerprint {
		if err := r.repo.Deactivate(ctx, sessionID); err != nil {
			slog.Warn("Failed to deactivate session on fingerprint mismatch",
				"error", err, "session_id", sessionID)
		}
		return false, nil
	}

	if err := r.repo.TouchLastActive(ctx, sessionID, time.Now().UTC()); err != nil {
		slog.Warn("Failed to update last_active", "error", err, "session_id", sessionID)
	}

	return true, nil
}

// End deactivates a session. Ending an inactive or absent session is
// a no-op.
func (r *Registry) End(ctx context.Context, sessionID string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.repo.Deactivate(ctx, sessionID); err != nil {
		return database.Unavailable(err)
	}
	return nil
}

// EndAllForUser deactivates every session of a user (admin force-logout)
func (r *Registry) EndAllForUser(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.repo.DeactivateAllForUser(ctx, userID); err != nil {
		return database.Unavailable(err)
	}
	return nil
}

// ActiveForUser returns the user's active sessions, newest last
func (r *Registry) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	active, err := r.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, database.Unavailable(err)
	}
	return active, nil
}
