package tutoring

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.TutorMessage) ([]*types.TutorMessage, error)
	// ListBySession returns the transcript oldest first; this is the exact
	// order replayed to the model as conversation history.
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.TutorMessage, error)
	ListRecent(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.TutorMessage, error)
	// FullDeleteBySession clears a session's transcript, keeping the
	// session row itself.
	FullDeleteBySession(dbc dbctx.Context, sessionID uuid.UUID) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, rows []*types.TutorMessage) ([]*types.TutorMessage, error) {
	if len(rows) == 0 {
		return []*types.TutorMessage{}, nil
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

func (r *messageRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.TutorMessage, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.TutorMessage
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.TutorMessage{}).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) ListRecent(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.TutorMessage, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.TutorMessage
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.TutorMessage{}).
		Where("session_id = ?", sessionID).
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	// Normalize to ASC for callers.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepo) FullDeleteBySession(dbc dbctx.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Delete(&types.TutorMessage{}).Error
}
