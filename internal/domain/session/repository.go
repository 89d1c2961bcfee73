package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the persistence boundary for session rows
type Repository interface {
	Insert(ctx context.Context, sess *Session) error
	FindActive(ctx context.Context, sessionID string, userID uuid.UUID) (*Session, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]Session, error)
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID) error
	DeactivateExcept(ctx context.Context, userID uuid.UUID, keepSessionID string) error
	TouchLastActive(ctx context.Context, sessionID string, t time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new session repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Insert(ctx context.Context, sess *Session) error {
	return r.db.WithContext(ctx).Create(sess).Error
}

func (r *repository) FindActive(ctx context.Context, sessionID string, userID uuid.UUID) (*Session, error) {
	var sess Session
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ? AND is_active = true", sessionID, userID.String()).
		First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = true", userID.String()).
		Order("created_at").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) Deactivate(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ? AND is_active = true", sessionID).
		Update("is_active", false).Error
}

func (r *repository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND is_active = true", userID.String()).
		Update("is_active", false).Error
}

func (r *repository) DeactivateExcept(ctx context.Context, userID uuid.UUID, keepSessionID string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND session_id <> ? AND is_active = true", userID.String(), keepSessionID).
		Update("is_active", false).Error
}

func (r *repository) TouchLastActive(ctx context.Context, sessionID string, t time.Time) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ? AND is_active = true", sessionID).
		Update("last_active", t).Error
}
