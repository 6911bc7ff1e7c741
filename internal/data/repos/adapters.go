package repos

import (
	"context"

	"github.com/google/uuid"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/dbctx"
)

// The retrieval engine and orchestrator consume plain-context interfaces so
// they stay ignorant of gorm; these adapters bridge them onto the
// dbctx-style repos.

// BlockSourceAdapter satisfies retrieval.BlockSource.
type BlockSourceAdapter struct {
	Blocks DocumentBlockRepo
}

func (a BlockSourceAdapter) WithEmbeddings(ctx context.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error) {
	return a.Blocks.WithEmbeddings(dbctx.Context{Ctx: ctx}, documentID)
}

func (a BlockSourceAdapter) TableRows(ctx context.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error) {
	return a.Blocks.TableRows(dbctx.Context{Ctx: ctx}, documentID)
}

// OwnerAccessAdapter satisfies retrieval.AccessChecker with the document
// owner check. Shared-document ACLs live in the editor surface, not here.
type OwnerAccessAdapter struct {
	Documents DocumentRepo
}

func (a OwnerAccessAdapter) IsAccessible(ctx context.Context, documentID, userID uuid.UUID) (bool, error) {
	return a.Documents.IsOwner(dbctx.Context{Ctx: ctx}, documentID, userID)
}

// LogSinkAdapter satisfies agent.LogSink.
type LogSinkAdapter struct {
	Logs AgentLogRepo
}

func (a LogSinkAdapter) Append(ctx context.Context, entry *types.AgentLogEntry) error {
	_, err := a.Logs.Append(dbctx.Context{Ctx: ctx}, []*types.AgentLogEntry{entry})
	return err
}
