package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	tutoringrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/tutoring"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

type TopicProgressView struct {
	TopicID          string     `json:"topic_id"`
	TopicTitle       string     `json:"topic_title"`
	Proficiency      int        `json:"proficiency"`
	ProficiencyLabel string     `json:"proficiency_label"`
	Notes            string     `json:"notes,omitempty"`
	LastStudied      *time.Time `json:"last_studied,omitempty"`
	StudyTimeSeconds int64      `json:"study_time_seconds"`
	SessionCount     int64      `json:"session_count"`
}

type ProgressSummary struct {
	TotalTopics        int     `json:"total_topics"`
	StartedTopics      int     `json:"started_topics"`
	MasteredTopics     int     `json:"mastered_topics"`
	AverageProficiency float64 `json:"average_proficiency"`
	StudyTimeSeconds   int64   `json:"study_time_seconds"`
	SessionCount       int64   `json:"session_count"`
}

type ProgressService interface {
	List(dbc dbctx.Context, userID uuid.UUID) ([]TopicProgressView, error)
	Get(dbc dbctx.Context, userID uuid.UUID, topicID string) (*TopicProgressView, error)
	Summary(dbc dbctx.Context, userID uuid.UUID) (*ProgressSummary, error)
	// SetProficiency records a self-assessment for a topic outside any
	// session.
	SetProficiency(dbc dbctx.Context, userID uuid.UUID, topicID string, proficiency int, notes string) (*TopicProgressView, error)
}

type progressService struct {
	log      *logger.Logger
	progress tutoringrepo.ProgressRepo
	topics   TopicService
	notifier TutorNotifier
}

func NewProgressService(
	log *logger.Logger,
	progress tutoringrepo.ProgressRepo,
	topics TopicService,
	notifier TutorNotifier,
) ProgressService {
	return &progressService{
		log:      log.With("service", "ProgressService"),
		progress: progress,
		topics:   topics,
		notifier: notifier,
	}
}

func (s *progressService) view(row *types.TopicProgress) TopicProgressView {
	return TopicProgressView{
		TopicID:          row.TopicID,
		TopicTitle:       s.topics.DisplayTitle(row.TopicID),
		Proficiency:      row.Proficiency,
		ProficiencyLabel: types.ProficiencyLabel(row.Proficiency),
		Notes:            row.Notes,
		LastStudied:      row.LastStudied,
		StudyTimeSeconds: row.StudyTimeSeconds,
		SessionCount:     row.SessionCount,
	}
}

func (s *progressService) List(dbc dbctx.Context, userID uuid.UUID) ([]TopicProgressView, error) {
	rows, err := s.progress.ListByUser(dbc, userID)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("list progress: %w", err))
	}
	out := make([]TopicProgressView, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.view(row))
	}
	return out, nil
}

func (s *progressService) Get(dbc dbctx.Context, userID uuid.UUID, topicID string) (*TopicProgressView, error) {
	topicID = strings.TrimSpace(topicID)
	if _, ok := s.topics.Get(topicID); !ok {
		return nil, apierr.NotFound(fmt.Errorf("unknown topic_id %q", topicID))
	}
	row, err := s.progress.GetByUserAndTopic(dbc, userID, topicID)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("load progress: %w", err))
	}
	if row == nil {
		v := s.view(&types.TopicProgress{TopicID: topicID})
		return &v, nil
	}
	v := s.view(row)
	return &v, nil
}

func (s *progressService) Summary(dbc dbctx.Context, userID uuid.UUID) (*ProgressSummary, error) {
	rows, err := s.progress.ListByUser(dbc, userID)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("list progress: %w", err))
	}
	summary := &ProgressSummary{TotalTopics: len(s.topics.All())}
	var sum int
	for _, row := range rows {
		summary.StartedTopics++
		if row.Proficiency >= types.ProficiencyMax {
			summary.MasteredTopics++
		}
		sum += row.Proficiency
		summary.StudyTimeSeconds += row.StudyTimeSeconds
		summary.SessionCount += row.SessionCount
	}
	if summary.StartedTopics > 0 {
		summary.AverageProficiency = float64(sum) / float64(summary.StartedTopics)
	}
	return summary, nil
}

func (s *progressService) SetProficiency(dbc dbctx.Context, userID uuid.UUID, topicID string, proficiency int, notes string) (*TopicProgressView, error) {
	topicID = strings.TrimSpace(topicID)
	if _, ok := s.topics.Get(topicID); !ok {
		return nil, apierr.Invalid(fmt.Errorf("unknown topic_id %q", topicID))
	}
	now := time.Now().UTC()
	row := &types.TopicProgress{
		ID:          uuid.New(),
		UserID:      userID,
		TopicID:     topicID,
		Proficiency: types.ClampProficiency(proficiency),
		Notes:       strings.TrimSpace(notes),
		LastStudied: &now,
	}
	if err := s.progress.Upsert(dbc, row); err != nil {
		return nil, apierr.Storage(fmt.Errorf("save proficiency: %w", err))
	}
	saved, err := s.progress.GetByUserAndTopic(dbc, userID, topicID)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("reload progress: %w", err))
	}
	s.notifier.ProgressUpdated(userID, saved)
	v := s.view(saved)
	return &v, nil
}
