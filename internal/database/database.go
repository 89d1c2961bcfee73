package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sorewa/gatehouse/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// BaseModel is embedded by every persisted model
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// BeforeCreate assigns a fresh UUID when none was set by the caller
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Connect opens a PostgreSQL connection from the database configuration.
// The handle is returned rather than stored in a package variable so
// tests can run several independent stores side by side.
func Connect(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
