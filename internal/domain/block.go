package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	BlockTypeParagraph = "paragraph"
	BlockTypeHeading   = "heading"
	BlockTypeTableRow  = "table_row"
	BlockTypeListItem  = "list_item"
	BlockTypeCode      = "code"
)

// DocumentBlock is a contiguous span of a document's text with a precomputed
// embedding. Blocks are refreshed externally whenever the document text
// changes; this core only reads them. StartLine and EndLine are inclusive and
// 0-based, with StartLine <= EndLine. Overlap during edit transients is
// tolerated by callers.
type DocumentBlock struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`

	BlockType string `gorm:"type:text;not null;index" json:"block_type"`
	StartLine int    `gorm:"not null" json:"start_line"`
	EndLine   int    `gorm:"not null" json:"end_line"`

	RawText        string `gorm:"type:text;not null" json:"raw_text"`
	NormalizedText string `gorm:"type:text;not null;default:''" json:"normalized_text"`

	Embedding datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"embedding"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DocumentBlock) TableName() string { return "document_block" }

// EmbeddingVector decodes the stored jsonb embedding. A missing, empty or
// malformed column yields nil rather than an error; retrieval treats such
// blocks as having no embedding.
func (b *DocumentBlock) EmbeddingVector() []float32 {
	if b == nil || len(b.Embedding) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(b.Embedding, &vec); err != nil {
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

// BlockSearchResult is the retrieval projection returned to the agent and,
// serialized, to the client.
type BlockSearchResult struct {
	BlockID        uuid.UUID `json:"block_id"`
	BlockType      string    `json:"block_type"`
	StartLine      int       `json:"start_line"`
	EndLine        int       `json:"end_line"`
	RawText        string    `json:"raw_text"`
	NormalizedText string    `json:"normalized_text"`
	Score          float64   `json:"score"`
}
