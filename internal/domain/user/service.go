package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sorewa/gatehouse/internal/database"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no user matches the query
var ErrNotFound = errors.New("user not found")

// SessionEnder deactivates a user's sessions; *session.Registry
// satisfies it.
type SessionEnder interface {
	EndAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Service covers the administrative account operations
type Service interface {
	List(ctx context.Context) ([]User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Delete(ctx context.Context, username string) error
	ForceLogout(ctx context.Context, username string) error
	RenewToken(ctx context.Context, username string, d token.Duration) (*token.Issued, error)
}

type service struct {
	repo     Repository
	tokens   token.Service
	sessions SessionEnder
}

// NewService creates a new user service
func NewService(repo Repository, tokens token.Service, sessions SessionEnder) Service {
	return &service{repo: repo, tokens: tokens, sessions: sessions}
}

func (s *service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, database.Unavailable(err)
	}
	return users, nil
}

func (s *service) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, database.Unavailable(err)
	}
	return u, nil
}

// Delete removes an account together with the token it consumed, so no
// orphan token keeps referencing a deleted user. The user's sessions
// are deactivated first; their coordinators pick the change up from
// the feed.
func (s *service) Delete(ctx context.Context, username string) error {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := s.sessions.EndAllForUser(ctx, u.ID); err != nil {
		slog.Warn("Failed to deactivate sessions of deleted user", "error", err, "username", username)
	}

	if u.Token != "" {
		if err := s.tokens.Revoke(ctx, u.Token); err != nil {
			return err
		}
	}
	// Catch tokens that were flagged for this account but never bound
	// to the user row (the sign-up gap).
	if err := s.tokens.RevokeUsedBy(ctx, username); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, u.ID.String()); err != nil {
		return database.Unavailable(err)
	}
	return nil
}

// ForceLogout deactivates every session of the user
func (s *service) ForceLogout(ctx context.Context, username string) error {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.sessions.EndAllForUser(ctx, u.ID)
}

// RenewToken replaces the user's invitation token with a fresh one for
// a new access period and rebinds the account to it.
func (s *service) RenewToken(ctx context.Context, username string, d token.Duration) (*token.Issued, error) {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	var issued *token.Issued
	if u.Token != "" {
		issued, err = s.tokens.Renew(ctx, u.Token, d)
	} else {
		issued, err = s.tokens.IssueUsed(ctx, d)
	}
	if err != nil {
		return nil, err
	}

	expiry := issued.Token.ExpiryDate
	if err := s.repo.SetToken(ctx, u.ID.String(), issued.Token.Token, &expiry); err != nil {
		return nil, database.Unavailable(err)
	}

	return issued, nil
}
