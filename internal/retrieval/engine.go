package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/apierr"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
)

const (
	// DefaultTopK applies when the caller passes topK <= 0.
	DefaultTopK = 5
	// MaxTopK caps result payloads; requests above it are clamped.
	MaxTopK = 50
)

// Embedder produces fixed-length embeddings for query text.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// BlockSource reads a document's blocks. WithEmbeddings excludes
// soft-deleted blocks and blocks whose embedding column is empty.
type BlockSource interface {
	WithEmbeddings(ctx context.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error)
	TableRows(ctx context.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error)
}

// AccessChecker answers whether a user may read a document. The check itself
// is owned by the editor surface; the engine only consumes the verdict.
type AccessChecker interface {
	IsAccessible(ctx context.Context, documentID, userID uuid.UUID) (bool, error)
}

// Engine answers document-scoped semantic queries over precomputed block
// embeddings. It is read-only and safe for concurrent use across sessions.
type Engine struct {
	log      *logger.Logger
	embedder Embedder
	blocks   BlockSource
	access   AccessChecker
}

func NewEngine(log *logger.Logger, embedder Embedder, blocks BlockSource, access AccessChecker) *Engine {
	return &Engine{
		log:      log.With("component", "RetrievalEngine"),
		embedder: embedder,
		blocks:   blocks,
		access:   access,
	}
}

// Search ranks the document's embedded blocks against queryText by cosine
// similarity and returns at most topK results, best first. topK <= 0 falls
// back to DefaultTopK; anything above MaxTopK is clamped.
func (e *Engine) Search(ctx context.Context, documentID, userID uuid.UUID, queryText string, topK int) ([]types.BlockSearchResult, error) {
	if err := e.checkAccess(ctx, documentID, userID); err != nil {
		return nil, err
	}
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, apierr.RetrievalFailed(fmt.Errorf("empty query"))
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	vecs, err := e.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, apierr.RetrievalFailed(fmt.Errorf("embed query: %w", err))
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, apierr.RetrievalFailed(fmt.Errorf("embedding provider returned no vector"))
	}
	query := vecs[0]

	blocks, err := e.blocks.WithEmbeddings(ctx, documentID)
	if err != nil {
		return nil, apierr.RetrievalFailed(fmt.Errorf("load blocks: %w", err))
	}

	byID := make(map[uuid.UUID]*types.DocumentBlock, len(blocks))
	items := make([]BlockVector, 0, len(blocks))
	for _, b := range blocks {
		if b == nil || b.ID == uuid.Nil {
			continue
		}
		vec := b.EmbeddingVector()
		if len(vec) == 0 {
			continue
		}
		byID[b.ID] = b
		items = append(items, BlockVector{BlockID: b.ID, StartLine: b.StartLine, Vector: vec})
	}

	ranked := Rank(query, items)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]types.BlockSearchResult, 0, len(ranked))
	for _, r := range ranked {
		b := byID[r.BlockID]
		if b == nil {
			continue
		}
		out = append(out, blockResult(b, r.Score))
	}

	e.log.Debug("semantic search served",
		"document_id", documentID,
		"candidates", len(items),
		"returned", len(out),
	)
	return out, nil
}

// SearchTables returns every table-row block of the document in document
// order. Presence is the signal: each result is scored 1.0, no ranking.
func (e *Engine) SearchTables(ctx context.Context, documentID, userID uuid.UUID) ([]types.BlockSearchResult, error) {
	if err := e.checkAccess(ctx, documentID, userID); err != nil {
		return nil, err
	}
	rows, err := e.blocks.TableRows(ctx, documentID)
	if err != nil {
		return nil, apierr.RetrievalFailed(fmt.Errorf("load table blocks: %w", err))
	}
	out := make([]types.BlockSearchResult, 0, len(rows))
	for _, b := range rows {
		if b == nil || b.ID == uuid.Nil {
			continue
		}
		out = append(out, blockResult(b, 1.0))
	}
	return out, nil
}

func (e *Engine) checkAccess(ctx context.Context, documentID, userID uuid.UUID) error {
	ok, err := e.access.IsAccessible(ctx, documentID, userID)
	if err != nil {
		return apierr.RetrievalFailed(fmt.Errorf("access check: %w", err))
	}
	if !ok {
		return apierr.AccessDenied(fmt.Errorf("user %s cannot read document %s", userID, documentID))
	}
	return nil
}

func blockResult(b *types.DocumentBlock, score float64) types.BlockSearchResult {
	return types.BlockSearchResult{
		BlockID:        b.ID,
		BlockType:      b.BlockType,
		StartLine:      b.StartLine,
		EndLine:        b.EndLine,
		RawText:        b.RawText,
		NormalizedText: b.NormalizedText,
		Score:          score,
	}
}
