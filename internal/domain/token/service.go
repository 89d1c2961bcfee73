package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sorewa/gatehouse/internal/database"
	"gorm.io/gorm"
)

var (
	// ErrInvalidToken is returned when no token row matches the presented value
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenAlreadyUsed is returned when the token was consumed by an earlier sign-up
	ErrTokenAlreadyUsed = errors.New("token already used")
	// ErrInvalidDuration is returned for an unknown access duration
	ErrInvalidDuration = errors.New("invalid token duration")
)

// Issued pairs a created token row with its plain value. The plain
// value exists only in this struct; the store holds the hash.
type Issued struct {
	Token *Token
	Plain string
}

// Service interface for token operations
type Service interface {
	Issue(ctx context.Context, d Duration) (*Issued, error)
	IssueUsed(ctx context.Context, d Duration) (*Issued, error)
	Lookup(ctx context.Context, hashed string) (*Token, error)
	Consume(ctx context.Context, plain, username string) (*Token, error)
	MarkUsed(ctx context.Context, hashed, username string) error
	Renew(ctx context.Context, hashed string, d Duration) (*Issued, error)
	Revoke(ctx context.Context, hashed string) error
	RevokeUsedBy(ctx context.Context, username string) error
	List(ctx context.Context) ([]Token, error)
}

type service struct {
	repo Repository
}

// NewService creates a new token service
func NewService(repo Repository) Service {
	return &service{repo}
}

// Issue creates a fresh unused token for the given access duration
func (s *service) Issue(ctx context.Context, d Duration) (*Issued, error) {
	return s.issue(ctx, d, false)
}

// IssueUsed creates a token already marked consumed, with used_by
// unset. Renewal-style direct assignment uses it when the user has no
// token row left to replace.
func (s *service) IssueUsed(ctx context.Context, d Duration) (*Issued, error) {
	return s.issue(ctx, d, true)
}

func (s *service) issue(ctx context.Context, d Duration, used bool) (*Issued, error) {
	if !d.Valid() {
		return nil, ErrInvalidDuration
	}

	plain, err := generateValue()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token value: %w", err)
	}

	now := time.Now().UTC()
	tok := &Token{
		Token:      HashValue(plain),
		Duration:   d,
		ExpiryDate: d.ExpiryFrom(now),
		IsUsed:     used,
	}

	if err := s.repo.Create(ctx, tok); err != nil {
		return nil, database.Unavailable(err)
	}

	return &Issued{Token: tok, Plain: plain}, nil
}

// Lookup finds a token row by its at-rest (hashed) value
func (s *service) Lookup(ctx context.Context, hashed string) (*Token, error) {
	tok, err := s.repo.GetByValue(ctx, hashed)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, database.Unavailable(err)
	}
	return tok, nil
}

// Consume validates a presented invitation code and flags it used by
// username. Once set, is_used is never reset except through Renew.
func (s *service) Consume(ctx context.Context, plain, username string) (*Token, error) {
	hashed := HashValue(plain)

	tok, err := s.Lookup(ctx, hashed)
	if err != nil {
		return nil, err
	}

	if tok.IsUsed {
		return nil, ErrTokenAlreadyUsed
	}

	if err := s.repo.MarkUsed(ctx, hashed, username); err != nil {
		return nil, database.Unavailable(err)
	}

	tok.IsUsed = true
	tok.UsedBy = username
	return tok, nil
}

// MarkUsed retries flagging a token consumed; sign-up calls this when
// the user row was written but the token flag write failed.
func (s *service) MarkUsed(ctx context.Context, hashed, username string) error {
	if err := s.repo.MarkUsed(ctx, hashed, username); err != nil {
		return database.Unavailable(err)
	}
	return nil
}

// Renew replaces a token with a fresh value for a new access period.
// The replacement is created already marked used with used_by unset:
// renewal assigns directly without a sign-up step. From the caller's
// view the swap is atomic: the old value is gone once this returns.
func (s *service) Renew(ctx context.Context, hashed string, d Duration) (*Issued, error) {
	if !d.Valid() {
		return nil, ErrInvalidDuration
	}

	if _, err := s.Lookup(ctx, hashed); err != nil {
		return nil, err
	}

	plain, err := generateValue()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token value: %w", err)
	}

	now := time.Now().UTC()
	tok := &Token{
		Token:      HashValue(plain),
		Duration:   d,
		ExpiryDate: d.ExpiryFrom(now),
		IsUsed:     true,
	}

	if err := s.repo.Create(ctx, tok); err != nil {
		return nil, database.Unavailable(err)
	}

	if err := s.repo.DeleteByValue(ctx, hashed); err != nil {
		return nil, database.Unavailable(err)
	}

	return &Issued{Token: tok, Plain: plain}, nil
}

// Revoke deletes a token row
func (s *service) Revoke(ctx context.Context, hashed string) error {
	if err := s.repo.DeleteByValue(ctx, hashed); err != nil {
		return database.Unavailable(err)
	}
	return nil
}

// RevokeUsedBy deletes every token flagged as consumed by username
func (s *service) RevokeUsedBy(ctx context.Context, username string) error {
	if err := s.repo.DeleteByUsedBy(ctx, username); err != nil {
		return database.Unavailable(err)
	}
	return nil
}

// List returns all token rows
func (s *service) List(ctx context.Context) ([]Token, error) {
	toks, err := s.repo.List(ctx)
	if err != nil {
		return nil, database.Unavailable(err)
	}
	return toks, nil
}
