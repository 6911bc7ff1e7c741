package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is the canonical markdown text of one thesis/report document.
// The editing surface (CRUD, rendering) lives outside this core; the agent
// reads the text and owner for access checks and marker encoding.
type Document struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title string `gorm:"type:text;not null" json:"title"`
	Text  string `gorm:"type:text;not null;default:''" json:"text"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Document) TableName() string { return "document" }
