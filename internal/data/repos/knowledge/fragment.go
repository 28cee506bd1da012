package knowledge

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

type FragmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.KnowledgeFragment) ([]*types.KnowledgeFragment, error)
	GetByContentHash(dbc dbctx.Context, hash string) (*types.KnowledgeFragment, error)
	// ListByTopicIDs returns fragments filed under any of the given topic
	// ids, oldest first so joined context reads in ingestion order.
	ListByTopicIDs(dbc dbctx.Context, topicIDs []string) ([]*types.KnowledgeFragment, error)
	CountByTopicID(dbc dbctx.Context, topicID string) (int64, error)
}

type fragmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFragmentRepo(db *gorm.DB, log *logger.Logger) FragmentRepo {
	return &fragmentRepo{db: db, log: log.With("repo", "FragmentRepo")}
}

func (r *fragmentRepo) Create(dbc dbctx.Context, rows []*types.KnowledgeFragment) ([]*types.KnowledgeFragment, error) {
	if len(rows) == 0 {
		return []*types.KnowledgeFragment{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *fragmentRepo) GetByContentHash(dbc dbctx.Context, hash string) (*types.KnowledgeFragment, error) {
	if hash == "" {
		return nil, fmt.Errorf("missing content_hash")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.KnowledgeFragment
	err := txx.WithContext(dbc.Ctx).
		Model(&types.KnowledgeFragment{}).
		Where("content_hash = ?", hash).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *fragmentRepo) ListByTopicIDs(dbc dbctx.Context, topicIDs []string) ([]*types.KnowledgeFragment, error) {
	if len(topicIDs) == 0 {
		return []*types.KnowledgeFragment{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.KnowledgeFragment
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.KnowledgeFragment{}).
		Where("topic_id IN ?", topicIDs).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fragmentRepo) CountByTopicID(dbc dbctx.Context, topicID string) (int64, error) {
	if topicID == "" {
		return 0, fmt.Errorf("missing topic_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.KnowledgeFragment{}).
		Where("topic_id = ?", topicID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
