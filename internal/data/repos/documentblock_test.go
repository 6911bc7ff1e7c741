package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/data/repos/testutil"
	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/dbctx"
)

func TestDocumentBlockRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDocumentBlockRepo(db, testutil.Logger(t))

	owner := uuid.New()
	doc := testutil.SeedDocument(t, ctx, tx, owner, "a\nb\nc\n")
	other := testutil.SeedDocument(t, ctx, tx, owner, "x\n")

	embedded := testutil.SeedBlock(t, ctx, tx, doc.ID, types.BlockTypeParagraph, 0, []float32{1, 0})
	later := testutil.SeedBlock(t, ctx, tx, doc.ID, types.BlockTypeHeading, 2, []float32{0, 1})
	unembedded := testutil.SeedBlock(t, ctx, tx, doc.ID, types.BlockTypeParagraph, 1, nil)
	tableRow := testutil.SeedBlock(t, ctx, tx, doc.ID, types.BlockTypeTableRow, 3, nil)
	testutil.SeedBlock(t, ctx, tx, other.ID, types.BlockTypeParagraph, 0, []float32{1, 1})

	rows, err := repo.WithEmbeddings(dbc, doc.ID)
	if err != nil {
		t.Fatalf("WithEmbeddings: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("WithEmbeddings: expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != embedded.ID || rows[1].ID != later.ID {
		t.Fatalf("WithEmbeddings: wrong rows or order")
	}
	for _, r := range rows {
		if r.ID == unembedded.ID {
			t.Fatalf("WithEmbeddings returned a block without an embedding")
		}
	}

	tables, err := repo.TableRows(dbc, doc.ID)
	if err != nil {
		t.Fatalf("TableRows: %v", err)
	}
	if len(tables) != 1 || tables[0].ID != tableRow.ID {
		t.Fatalf("TableRows: expected only the table row")
	}

	// Soft-deleted blocks disappear from both reads.
	if err := tx.WithContext(ctx).Delete(&types.DocumentBlock{}, "id = ?", embedded.ID).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	rows, err = repo.WithEmbeddings(dbc, doc.ID)
	if err != nil {
		t.Fatalf("WithEmbeddings after delete: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != later.ID {
		t.Fatalf("WithEmbeddings after delete: expected only the remaining block")
	}

	if rows, err := repo.WithEmbeddings(dbc, uuid.Nil); err != nil || len(rows) != 0 {
		t.Fatalf("WithEmbeddings(nil id): err=%v len=%d", err, len(rows))
	}
}
