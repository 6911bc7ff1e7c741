package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AgentLogToolCall   = "tool-call"
	AgentLogToolResult = "tool-result"
	AgentLogReasoning  = "reasoning"
	AgentLogError      = "error"
	AgentLogChange     = "change"
)

// AgentLogEntry is one append-only audit record of one event inside one
// agent iteration. The core never mutates or deletes entries; retention is
// an external concern.
type AgentLogEntry struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"document_id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ChatID     *uuid.UUID `gorm:"type:uuid;index" json:"chat_id,omitempty"`

	LogType string `gorm:"type:text;not null;index" json:"log_type"`
	Content string `gorm:"type:text;not null" json:"content"`

	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	IterationNumber int  `gorm:"not null" json:"iteration_number"`
	StepNumber      *int `json:"step_number,omitempty"`

	Timestamp time.Time `gorm:"not null;default:now();index" json:"timestamp"`
}

func (AgentLogEntry) TableName() string { return "agent_log_entry" }
