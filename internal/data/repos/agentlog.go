package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/dbctx"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
)

// AgentLogRepo is append-only: entries are never updated or deleted by the
// core. Retention is an external concern.
type AgentLogRepo interface {
	Append(dbc dbctx.Context, entries []*types.AgentLogEntry) ([]*types.AgentLogEntry, error)
	ListByDocument(dbc dbctx.Context, documentID uuid.UUID, limit int) ([]*types.AgentLogEntry, error)
}

type agentLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentLogRepo(db *gorm.DB, log *logger.Logger) AgentLogRepo {
	return &agentLogRepo{db: db, log: log.With("repo", "AgentLogRepo")}
}

func (r *agentLogRepo) Append(dbc dbctx.Context, entries []*types.AgentLogEntry) ([]*types.AgentLogEntry, error) {
	if len(entries) == 0 {
		return []*types.AgentLogEntry{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	for _, e := range entries {
		if e != nil && e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}
	}
	if err := txx.WithContext(dbc.Ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *agentLogRepo) ListByDocument(dbc dbctx.Context, documentID uuid.UUID, limit int) ([]*types.AgentLogEntry, error) {
	if documentID == uuid.Nil {
		return []*types.AgentLogEntry{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.AgentLogEntry
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.AgentLogEntry{}).
		Where("document_id = ?", documentID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
