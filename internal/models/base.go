package models

import (
	"time"

	"finwatch/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records. When CreatedAt is
// already set (records written with an injected clock) the id is stamped
// with that instant instead of wall time.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		if b.CreatedAt.IsZero() {
			b.ID = uuid.New()
		} else {
			b.ID = uuid.NewAt(b.CreatedAt)
		}
	}
	return nil
}
