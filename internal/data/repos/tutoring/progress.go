package tutoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

type ProgressRepo interface {
	// Upsert inserts or updates the single row for (user_id, topic_id).
	// Row-level consistency comes from the unique index plus ON CONFLICT,
	// not from application-level locking.
	Upsert(dbc dbctx.Context, row *types.TopicProgress) error
	GetByUserAndTopic(dbc dbctx.Context, userID uuid.UUID, topicID string) (*types.TopicProgress, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.TopicProgress, error)
	// AddStudyTime folds a completed session's duration and count into the
	// (user, topic) row, creating it when absent.
	AddStudyTime(dbc dbctx.Context, userID uuid.UUID, topicID string, seconds int64, studiedAt time.Time) error
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, log *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: log.With("repo", "ProgressRepo")}
}

func (r *progressRepo) Upsert(dbc dbctx.Context, row *types.TopicProgress) error {
	if row == nil {
		return fmt.Errorf("missing row")
	}
	if row.UserID == uuid.Nil {
		return fmt.Errorf("missing user_id")
	}
	if row.TopicID == "" {
		return fmt.Errorf("missing topic_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	row.UpdatedAt = time.Now().UTC()
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"proficiency", "notes", "last_studied", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *progressRepo) GetByUserAndTopic(dbc dbctx.Context, userID uuid.UUID, topicID string) (*types.TopicProgress, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if topicID == "" {
		return nil, fmt.Errorf("missing topic_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.TopicProgress
	err := txx.WithContext(dbc.Ctx).
		Model(&types.TopicProgress{}).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *progressRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.TopicProgress, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.TopicProgress
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.TopicProgress{}).
		Where("user_id = ?", userID).
		Order("topic_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *progressRepo) AddStudyTime(dbc dbctx.Context, userID uuid.UUID, topicID string, seconds int64, studiedAt time.Time) error {
	if userID == uuid.Nil {
		return fmt.Errorf("missing user_id")
	}
	if topicID == "" {
		return fmt.Errorf("missing topic_id")
	}
	if seconds < 0 {
		seconds = 0
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	row := &types.TopicProgress{
		ID:               uuid.New(),
		UserID:           userID,
		TopicID:          topicID,
		LastStudied:      &studiedAt,
		StudyTimeSeconds: seconds,
		SessionCount:     1,
	}
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"study_time_seconds": gorm.Expr("topic_progress.study_time_seconds + ?", seconds),
				"session_count":      gorm.Expr("topic_progress.session_count + 1"),
				"last_studied":       studiedAt,
				"updated_at":         time.Now().UTC(),
			}),
		}).
		Create(row).Error
}
