package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, text string) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:     uuid.New(),
		UserID: userID,
		Title:  "doc",
		Text:   text,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedBlock(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID uuid.UUID, blockType string, startLine int, vec []float32) *types.DocumentBlock {
	tb.Helper()
	b := &types.DocumentBlock{
		ID:         uuid.New(),
		DocumentID: documentID,
		BlockType:  blockType,
		StartLine:  startLine,
		EndLine:    startLine,
		RawText:    fmt.Sprintf("block at line %d", startLine),
		Embedding:  EmbeddingJSON(vec),
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed block: %v", err)
	}
	return b
}

func EmbeddingJSON(vec []float32) datatypes.JSON {
	if len(vec) == 0 {
		return datatypes.JSON("[]")
	}
	out := "["
	for i, v := range vec {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%g", v)
	}
	return datatypes.JSON(out + "]")
}
