package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/data/repos/testutil"
	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/dbctx"
)

func TestDocumentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDocumentRepo(db, testutil.Logger(t))

	owner := uuid.New()
	stranger := uuid.New()

	doc := &types.Document{
		ID:     uuid.New(),
		UserID: owner,
		Title:  "thesis",
		Text:   "Line1\nLine2\n",
	}
	created, err := repo.Create(dbc, []*types.Document{doc})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("Create: expected 1, got %d", len(created))
	}

	rows, err := repo.GetByIDs(dbc, []uuid.UUID{doc.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}
	if rows[0].Text != doc.Text {
		t.Fatalf("GetByIDs: unexpected text %q", rows[0].Text)
	}

	if err := repo.UpdateText(dbc, doc.ID, "Line1\nNewLine\nLine2\n"); err != nil {
		t.Fatalf("UpdateText: %v", err)
	}
	rows, err = repo.GetByIDs(dbc, []uuid.UUID{doc.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("GetByIDs after update: err=%v len=%d", err, len(rows))
	}
	if rows[0].Text != "Line1\nNewLine\nLine2\n" {
		t.Fatalf("UpdateText not persisted: %q", rows[0].Text)
	}

	if ok, err := repo.IsOwner(dbc, doc.ID, owner); err != nil || !ok {
		t.Fatalf("IsOwner(owner): ok=%v err=%v", ok, err)
	}
	if ok, err := repo.IsOwner(dbc, doc.ID, stranger); err != nil || ok {
		t.Fatalf("IsOwner(stranger): ok=%v err=%v", ok, err)
	}
	if ok, err := repo.IsOwner(dbc, uuid.New(), owner); err != nil || ok {
		t.Fatalf("IsOwner(missing doc): ok=%v err=%v", ok, err)
	}
}
