package exam

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

type AttemptRepo interface {
	Create(dbc dbctx.Context, rows []*types.ExamAttempt) ([]*types.ExamAttempt, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ExamAttempt, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ExamAttempt, error)
	ListCompletedByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ExamAttempt, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type attemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptRepo(db *gorm.DB, log *logger.Logger) AttemptRepo {
	return &attemptRepo{db: db, log: log.With("repo", "AttemptRepo")}
}

func (r *attemptRepo) Create(dbc dbctx.Context, rows []*types.ExamAttempt) ([]*types.ExamAttempt, error) {
	if len(rows) == 0 {
		return []*types.ExamAttempt{}, nil
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

func (r *attemptRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ExamAttempt, error) {
	if len(ids) == 0 {
		return []*types.ExamAttempt{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ExamAttempt
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ExamAttempt{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attemptRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ExamAttempt, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ExamAttempt
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ExamAttempt{}).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attemptRepo) ListCompletedByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ExamAttempt, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ExamAttempt
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ExamAttempt{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Order("started_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attemptRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.ExamAttempt{}).
		Where("id = ?", id).
		Updates(updates).Error
}
