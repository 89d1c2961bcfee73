package token

import (
	"context"

	"gorm.io/gorm"
)

// Repository interface for token operations
type Repository interface {
	Create(ctx context.Context, tok *Token) error
	GetByValue(ctx context.Context, hashed string) (*Token, error)
	List(ctx context.Context) ([]Token, error)
	MarkUsed(ctx context.Context, hashed, usedBy string) error
	DeleteByValue(ctx context.Context, hashed string) error
	DeleteByUsedBy(ctx context.Context, username string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new token repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(ctx context.Context, tok *Token) error {
	return r.db.WithContext(ctx).Create(tok).Error
}

func (r *repository) GetByValue(ctx context.Context, hashed string) (*Token, error) {
	var tok Token
	if err := r.db.WithContext(ctx).Where("token = ?", hashed).First(&tok).Error; err != nil {
		return nil, err
	}
	return &tok, nil
}

func (r *repository) List(ctx context.Context) ([]Token, error) {
	var toks []Token
	if err := r.db.WithContext(ctx).Order("created_at").Find(&toks).Error; err != nil {
		return nil, err
	}
	return toks, nil
}

// MarkUsed flags a token consumed. The is_used guard keeps the write
// idempotent so sign-up can retry it after a partial failure.
func (r *repository) MarkUsed(ctx context.Context, hashed, usedBy string) error {
	return r.db.WithContext(ctx).Model(&Token{}).
		Where("token = ?", hashed).
		Updates(map[string]any{"is_used": true, "used_by": usedBy}).Error
}

func (r *repository) DeleteByValue(ctx context.Context, hashed string) error {
	return r.db.WithContext(ctx).Where("token = ?", hashed).Delete(&Token{}).Error
}

func (r *repository) DeleteByUsedBy(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).Where("used_by = ?", username).Delete(&Token{}).Error
}
