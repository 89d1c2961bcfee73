package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sorewa/gatehouse/internal/config"
	"github.com/sorewa/gatehouse/internal/database"
	"github.com/sorewa/gatehouse/internal/domain/session"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/domain/user"
	"github.com/sorewa/gatehouse/internal/sessionstore"
	"gorm.io/gorm"
)

// SessionRegistry is the slice of the session registry the auth flow
// needs; *session.Registry satisfies it.
type SessionRegistry interface {
	Create(ctx context.Context, userID uuid.UUID, fingerprint string) (string, error)
	Validate(ctx context.Context, sessionID string, userID uuid.UUID, fingerprint string) (bool, error)
	End(ctx context.Context, sessionID string) error
	ActiveForUser(ctx context.Context, userID uuid.UUID) ([]session.Session, error)
}

// LoginResponse is returned from a successful sign-in
type LoginResponse struct {
	AccessToken string               `json:"access_token"`
	Record      *sessionstore.Record `json:"record"`
}

// Service drives sign-in, sign-up, session check and sign-out
type Service struct {
	users    user.Repository
	tokens   token.Service
	registry SessionRegistry
	store    sessionstore.Store
	signer   *Signer
	admin    config.AdminConfig

	// dummyHash keeps credential checks constant-shape for unknown
	// usernames.
	dummyHash string
}

// NewService creates a new auth service
func NewService(users user.Repository, tokens token.Service, registry SessionRegistry,
	store sessionstore.Store, signer *Signer, admin config.AdminConfig) *Service {

	dummy, err := user.HashPassword(uuid.NewString())
	if err != nil {
		// rand failure; verification against an empty hash still fails closed
		dummy = ""
	}

	return &Service{
		users:     users,
		tokens:    tokens,
		registry:  registry,
		store:     store,
		signer:    signer,
		admin:     admin,
		dummyHash: dummy,
	}
}

// isAdminLogin checks the reserved configuration-supplied admin pair
func (s *Service) isAdminLogin(username, password string) bool {
	if s.admin.Username == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	return userOK && passOK
}

// SignIn authenticates a username/password pair from the device
// identified by fingerprint. The admin pair bypasses the session
// registry entirely and yields a synthetic session. A user with an
// active session on a different device is rejected rather than
// silently taken over.
func (s *Service) SignIn(ctx context.Context, username, password, fingerprint string) (*LoginResponse, error) {
	if s.isAdminLogin(username, password) {
		rec := sessionstore.Record{
			Username:          username,
			SessionID:         "admin-" + uuid.NewString(),
			DeviceFingerprint: fingerprint,
			CreatedAt:         time.Now().UTC(),
			IsAdmin:           true,
		}
		return s.finishSignIn(ctx, rec, fingerprint)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user.VerifyPassword(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, database.Unavailable(err)
	}

	if !user.VerifyPassword(password, u.Password) {
		return nil, ErrInvalidCredentials
	}

	active, err := s.registry.ActiveForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	for _, sess := range active {
		if sess.DeviceFingerprint != fingerprint {
			return nil, ErrAlreadyLoggedInElsewhere
		}
	}

	sid, err := s.registry.Create(ctx, u.ID, fingerprint)
	if err != nil {
		return nil, err
	}

	rec := sessionstore.Record{
		Username:          u.Username,
		UserID:            u.ID.String(),
		Token:             u.Token,
		TokenExpiry:       u.TokenExpiry,
		DeviceFingerprint: fingerprint,
		SessionID:         sid,
		CreatedAt:         time.Now().UTC(),
	}
	return s.finishSignIn(ctx, rec, fingerprint)
}

// finishSignIn persists the local session record under the client key
// (the device fingerprint) and issues the bearer token.
func (s *Service) finishSignIn(ctx context.Context, rec sessionstore.Record, clientKey string) (*LoginResponse, error) {
	if err := s.store.Save(ctx, clientKey, rec); err != nil {
		return nil, err
	}

	access, err := s.signer.Sign(rec, clientKey)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{AccessToken: access, Record: &rec}, nil
}

// SignUp registers an account against a one-time invitation token.
// The user insert and the token's used flag are two separate writes;
// when the second fails it is retried once, and a remaining gap is
// reconciled by the next sign-up attempt tripping over the existing
// username rather than by a transaction.
func (s *Service) SignUp(ctx context.Context, username, password, plainToken string) (*user.User, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.Unavailable(err)
	}

	hashed := token.HashValue(plainToken)
	tok, err := s.tokens.Lookup(ctx, hashed)
	if err != nil {
		return nil, err
	}
	if tok.IsUsed {
		return nil, token.ErrTokenAlreadyUsed
	}

	passwordHash, err := user.HashPassword(password)
	if err != nil {
		return nil, err
	}

	expiry := tok.ExpiryDate
	u := &user.User{
		Username:    username,
		Password:    passwordHash,
		Token:       hashed,
		TokenExpiry: &expiry,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, database.Unavailable(err)
	}

	if err := s.tokens.MarkUsed(ctx, hashed, username); err != nil {
		slog.Warn("Failed to mark token used, retrying once", "error", err, "username", username)
		if err := s.tokens.MarkUsed(ctx, hashed, username); err != nil {
			return nil, fmt.Errorf("account created but token not flagged: %w", err)
		}
	}

	return u, nil
}

// CheckSession re-validates the local session record stored under
// clientKey and returns the resulting state. Statuses that clear the
// record also remove it here. A validation failure against the
// registry keeps the stale record: flapping users out on a transient
// store error costs more than a few seconds of staleness, and the
// coordinator delivers real invalidations.
func (s *Service) CheckSession(ctx context.Context, clientKey string) (Status, *sessionstore.Record, error) {
	rec, err := s.store.Load(ctx, clientKey)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return StatusAnonymous, nil, nil
	}
	if err != nil {
		return StatusAnonymous, nil, err
	}

	if rec.IsAdmin {
		if rec.Username == s.admin.Username {
			return StatusAuthenticated, rec, nil
		}
		s.clear(ctx, clientKey)
		return StatusAnonymous, nil, nil
	}

	u, err := s.users.GetByUsername(ctx, rec.Username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.clear(ctx, clientKey)
		return StatusAccessRevoked, nil, nil
	}
	if err != nil {
		slog.Warn("Session check could not reach store, keeping session",
			"error", err, "username", rec.Username)
		return StatusAuthenticated, rec, nil
	}

	if u.Token == "" {
		s.clear(ctx, clientKey)
		return StatusTokenDeactivated, nil, nil
	}

	tok, err := s.tokens.Lookup(ctx, u.Token)
	if errors.Is(err, token.ErrInvalidToken) {
		s.clear(ctx, clientKey)
		return StatusTokenDeactivated, nil, nil
	}
	if err != nil {
		slog.Warn("Session check could not reach store, keeping session",
			"error", err, "username", rec.Username)
		return StatusAuthenticated, rec, nil
	}

	if tok.Expired(time.Now().UTC()) {
		if err := s.users.ClearToken(ctx, u.ID.String()); err != nil {
			slog.Warn("Failed to clear expired token reference", "error", err, "username", u.Username)
		}
		s.clear(ctx, clientKey)
		return StatusTokenExpired, nil, nil
	}

	if !tok.IsUsed {
		s.clear(ctx, clientKey)
		return StatusTokenDeactivated, nil, nil
	}

	ok, err := s.registry.Validate(ctx, rec.SessionID, u.ID, rec.DeviceFingerprint)
	if err != nil || !ok {
		if err != nil {
			slog.Warn("Session validation failed transiently, keeping session",
				"error", err, "username", rec.Username)
		}
		return StatusAuthenticated, rec, nil
	}

	rec.Token = u.Token
	rec.TokenExpiry = u.TokenExpiry
	if err := s.store.Save(ctx, clientKey, *rec); err != nil {
		slog.Warn("Failed to refresh session record", "error", err, "username", rec.Username)
	}

	return StatusAuthenticated, rec, nil
}

// SignOut ends the registry session and removes the local record.
// Signing out an already-signed-out client is a no-op.
func (s *Service) SignOut(ctx context.Context, clientKey string) error {
	rec, err := s.store.Load(ctx, clientKey)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !rec.IsAdmin {
		if err := s.registry.End(ctx, rec.SessionID); err != nil {
			slog.Warn("Failed to end registry session", "error", err, "session_id", rec.SessionID)
		}
	}

	return s.store.Clear(ctx, clientKey)
}

// AdminUsername exposes the configured admin name for middleware checks
func (s *Service) AdminUsername() string {
	return s.admin.Username
}

func (s *Service) clear(ctx context.Context, clientKey string) {
	if err := s.store.Clear(ctx, clientKey); err != nil {
		slog.Warn("Failed to clear session record", "error", err, "key", clientKey)
	}
}
