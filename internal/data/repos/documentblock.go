package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/dbctx"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
)

type DocumentBlockRepo interface {
	Create(dbc dbctx.Context, rows []*types.DocumentBlock) ([]*types.DocumentBlock, error)
	// WithEmbeddings returns the document's blocks that carry a non-empty
	// embedding, in document order. Soft-deleted blocks are excluded by gorm.
	WithEmbeddings(dbc dbctx.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error)
	// TableRows returns every table_row block of the document ordered by
	// start_line, embedded or not.
	TableRows(dbc dbctx.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error)
}

type documentBlockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentBlockRepo(db *gorm.DB, log *logger.Logger) DocumentBlockRepo {
	return &documentBlockRepo{db: db, log: log.With("repo", "DocumentBlockRepo")}
}

func (r *documentBlockRepo) Create(dbc dbctx.Context, rows []*types.DocumentBlock) ([]*types.DocumentBlock, error) {
	if len(rows) == 0 {
		return []*types.DocumentBlock{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	// Keep batches small because RawText is large.
	const batchSize = 100
	if err := txx.WithContext(dbc.Ctx).CreateInBatches(rows, batchSize).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentBlockRepo) WithEmbeddings(dbc dbctx.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error) {
	if documentID == uuid.Nil {
		return []*types.DocumentBlock{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.DocumentBlock
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.DocumentBlock{}).
		Where("document_id = ?", documentID).
		Where("embedding <> '[]'::jsonb").
		Order("start_line ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentBlockRepo) TableRows(dbc dbctx.Context, documentID uuid.UUID) ([]*types.DocumentBlock, error) {
	if documentID == uuid.Nil {
		return []*types.DocumentBlock{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.DocumentBlock
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.DocumentBlock{}).
		Where("document_id = ? AND block_type = ?", documentID, types.BlockTypeTableRow).
		Order("start_line ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
