package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	examrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/exam"
	tutoringrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/tutoring"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/anthropic"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

const (
	defaultExamQuestionCount = 5
	maxExamQuestionCount     = 20
	evalConcurrency          = 4
)

type StartExamInput struct {
	TopicID   string     `json:"topic_id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Count     int        `json:"count"`
}

// StudentQuestion is a generated question with the mark scheme stripped.
type StudentQuestion struct {
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"`
	Marks    int      `json:"marks"`
}

type ExamResult struct {
	Attempt     *types.ExamAttempt      `json:"attempt"`
	Evaluations []types.ExamEvaluation  `json:"evaluations"`
	Score       float64                 `json:"score"`
	Proficiency int                     `json:"proficiency"`
	Progress    *types.TopicProgress    `json:"progress,omitempty"`
}

type ExamStats struct {
	TotalAttempts     int                `json:"total_attempts"`
	CompletedAttempts int                `json:"completed_attempts"`
	AverageScore      float64            `json:"average_score"`
	BestScoreByTopic  map[string]float64 `json:"best_score_by_topic"`
}

type ExamService interface {
	Start(dbc dbctx.Context, userID uuid.UUID, input StartExamInput) (*types.ExamAttempt, []StudentQuestion, error)
	SubmitAnswer(dbc dbctx.Context, userID uuid.UUID, attemptID uuid.UUID, questionIndex int, answer string) (*types.ExamAttempt, error)
	// Complete marks every answered question, folds the result into topic
	// progress, and closes the attempt.
	Complete(dbc dbctx.Context, userID uuid.UUID, attemptID uuid.UUID) (*ExamResult, error)
	Get(dbc dbctx.Context, userID uuid.UUID, attemptID uuid.UUID) (*types.ExamAttempt, error)
	List(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ExamAttempt, error)
	Stats(dbc dbctx.Context, userID uuid.UUID) (*ExamStats, error)
}

type examService struct {
	log       *logger.Logger
	attempts  examrepo.AttemptRepo
	progress  tutoringrepo.ProgressRepo
	topics    TopicService
	knowledge KnowledgeService
	model     anthropic.Client
	notifier  TutorNotifier
}

func NewExamService(
	log *logger.Logger,
	attempts examrepo.AttemptRepo,
	progress tutoringrepo.ProgressRepo,
	topics TopicService,
	knowledge KnowledgeService,
	model anthropic.Client,
	notifier TutorNotifier,
) ExamService {
	return &examService{
		log:       log.With("service", "ExamService"),
		attempts:  attempts,
		progress:  progress,
		topics:    topics,
		knowledge: knowledge,
		model:     model,
		notifier:  notifier,
	}
}

func (s *examService) Start(dbc dbctx.Context, userID uuid.UUID, input StartExamInput) (*types.ExamAttempt, []StudentQuestion, error) {
	if userID == uuid.Nil {
		return nil, nil, apierr.Invalid(fmt.Errorf("missing user"))
	}
	topicID := strings.TrimSpace(input.TopicID)
	topic, ok := s.topics.Get(topicID)
	if !ok {
		return nil, nil, apierr.Invalid(fmt.Errorf("unknown topic_id %q", topicID))
	}
	count := input.Count
	if count <= 0 {
		count = defaultExamQuestionCount
	}
	if count > maxExamQuestionCount {
		count = maxExamQuestionCount
	}

	knowledgeContext, err := s.knowledge.ContextForTopic(dbc, topicID)
	if err != nil {
		s.log.Warn("knowledge lookup degraded for exam", "topic_id", topicID, "error", err)
		knowledgeContext = ""
	}

	questions, err := s.generateQuestions(dbc, topic, knowledgeContext, count)
	if err != nil {
		return nil, nil, apierr.Upstream(fmt.Errorf("generate questions: %w", err))
	}

	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("encode questions: %w", err))
	}

	attempt := &types.ExamAttempt{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   topicID,
		SessionID: input.SessionID,
		Questions: datatypes.JSON(questionsJSON),
		Answers:   datatypes.JSON([]byte("{}")),
		StartedAt: time.Now().UTC(),
	}
	if _, err := s.attempts.Create(dbc, []*types.ExamAttempt{attempt}); err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("store attempt: %w", err))
	}

	student := make([]StudentQuestion, 0, len(questions))
	for _, q := range questions {
		student = append(student, StudentQuestion{
			Question: q.Question,
			Type:     q.Type,
			Options:  q.Options,
			Marks:    q.Marks,
		})
	}
	s.log.Info("exam started", "user_id", userID, "topic_id", topicID, "attempt_id", attempt.ID, "questions", len(questions))
	return attempt, student, nil
}

func (s *examService) SubmitAnswer(dbc dbctx.Context, userID uuid.UUID, attemptID uuid.UUID, questionIndex int, answer string) (*types.ExamAttempt, error) {
	attempt, err := s.getOwned(dbc, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed {
		return nil, apierr.New(http.StatusConflict, apierr.CodeConflict, fmt.Errorf("attempt %s already completed", attemptID))
	}

	questions, err := decodeQuestions(attempt.Questions)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("decode questions: %w", err))
	}
	if questionIndex < 0 || questionIndex >= len(questions) {
		return nil, apierr.Invalid(fmt.Errorf("question index %d out of range", questionIndex))
	}

	answers, err := decodeAnswers(attempt.Answers)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("decode answers: %w", err))
	}
	answers[strconv.Itoa(questionIndex)] = answer

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("encode answers: %w", err))
	}
	if err := s.attempts.UpdateFields(dbc, attemptID, map[string]interface{}{
		"answers": datatypes.JSON(answersJSON),
	}); err != nil {
		return nil, apierr.Storage(fmt.Errorf("save answer: %w", err))
	}
	attempt.Answers = datatypes.JSON(answersJSON)
	return attempt, nil
}

func (s *examService) Complete(dbc dbctx.Context, userID uuid.UUID, attemptID uuid.UUID) (*ExamResult, error) {
	attempt, err := s.getOwned(dbc, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed {
		return nil, apierr.New(http.StatusConflict, apierr.CodeConflict, fmt.Errorf("attempt %s already completed", attemptID))
	}

	questions, err := decodeQuestions(attempt.Questions)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("decode questions: %w", err))
	}
	answers, err := decodeAnswers(attempt.Answers)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("decode answers: %w", err))
	}

	evaluations := make([]types.ExamEvaluation, len(questions))
	g, gctx := errgroup.WithContext(dbc.Ctx)
	g.SetLimit(evalConcurrency)
	for i := range questions {
		i := i
		q := questions[i]
		answer := answers[strconv.Itoa(i)]
		g.Go(func() error {
			if strings.TrimSpace(answer) == "" {
				evaluations[i] = types.ExamEvaluation{
					Score:       0,
					MaxScore:    float64(q.Marks),
					Feedback:    "No answer given.",
					ModelAnswer: q.Answer,
				}
				return nil
			}
			ev, err := s.evaluateAnswer(gctx, q, answer)
			if err != nil {
				return err
			}
			evaluations[i] = *ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apierr.Upstream(fmt.Errorf("evaluate answers: %w", err))
	}

	var scored, possible float64
	for _, ev := range evaluations {
		scored += ev.Score
		possible += ev.MaxScore
	}
	percent := 0.0
	if possible > 0 {
		percent = scored / possible * 100
	}

	feedbackJSON, err := json.Marshal(evaluations)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("encode feedback: %w", err))
	}
	now := time.Now().UTC()
	duration := int64(now.Sub(attempt.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	if err := s.attempts.UpdateFields(dbc, attemptID, map[string]interface{}{
		"feedback":         datatypes.JSON(feedbackJSON),
		"score":            percent,
		"completed":        true,
		"ended_at":         now,
		"duration_seconds": duration,
	}); err != nil {
		return nil, apierr.Storage(fmt.Errorf("close attempt: %w", err))
	}
	attempt.Feedback = datatypes.JSON(feedbackJSON)
	attempt.Score = &percent
	attempt.Completed = true
	attempt.EndedAt = &now
	attempt.DurationSeconds = &duration

	proficiency := proficiencyForScore(percent)
	progress, err := s.raiseProficiency(dbc, userID, attempt.TopicID, proficiency, now)
	if err != nil {
		s.log.Warn("failed to fold exam result into progress", "attempt_id", attemptID, "error", err)
	}

	s.notifier.ExamCompleted(userID, attempt)
	if progress != nil {
		s.notifier.ProgressUpdated(userID, progress)
	}
	s.log.Info("exam completed", "user_id", userID, "attempt_id", attemptID, "score", percent)
	return &ExamResult{
		Attempt:     attempt,
		Evaluations: evaluations,
		Score:       percent,
		Proficiency: proficiency,
		Progress:    progress,
	}, nil
}

func (s *examService) Get(dbc dbctx.Context, userID uuid.UUID, attemptID uuid.UUID) (*types.ExamAttempt, error) {
	return s.getOwned(dbc, userID, attemptID)
}

func (s *examService) List(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ExamAttempt, error) {
	rows, err := s.attempts.ListByUser(dbc, userID, limit)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("list attempts: %w", err))
	}
	return rows, nil
}

func (s *examService) Stats(dbc dbctx.Context, userID uuid.UUID) (*ExamStats, error) {
	all, err := s.attempts.ListByUser(dbc, userID, 200)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("list attempts: %w", err))
	}
	stats := &ExamStats{BestScoreByTopic: map[string]float64{}}
	stats.TotalAttempts = len(all)
	var sum float64
	for _, a := range all {
		if !a.Completed || a.Score == nil {
			continue
		}
		stats.CompletedAttempts++
		sum += *a.Score
		if best, ok := stats.BestScoreByTopic[a.TopicID]; !ok || *a.Score > best {
			stats.BestScoreByTopic[a.TopicID] = *a.Score
		}
	}
	if stats.CompletedAttempts > 0 {
		stats.AverageScore = sum / float64(stats.CompletedAttempts)
	}
	return stats, nil
}

func (s *examService) getOwned(dbc dbctx.Context, userID uuid.UUID, attemptID uuid.UUID) (*types.ExamAttempt, error) {
	if attemptID == uuid.Nil {
		return nil, apierr.Invalid(fmt.Errorf("missing attempt id"))
	}
	rows, err := s.attempts.GetByIDs(dbc, []uuid.UUID{attemptID})
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("load attempt: %w", err))
	}
	if len(rows) == 0 {
		return nil, apierr.NotFound(fmt.Errorf("attempt %s not found", attemptID))
	}
	if rows[0].UserID != userID {
		return nil, apierr.Forbidden(fmt.Errorf("attempt %s belongs to another user", attemptID))
	}
	return rows[0], nil
}

func (s *examService) generateQuestions(dbc dbctx.Context, topic Topic, knowledgeContext string, count int) ([]types.ExamQuestion, error) {
	system := "You write OCR A-Level Computer Science exam questions. " +
		"Respond only with a JSON array; each element has the keys " +
		`"question", "type" ("multiple_choice", "short_answer" or "extended"), ` +
		`"options" (for multiple choice only), "answer" and "marks".`

	var sb strings.Builder
	if knowledgeContext != "" {
		sb.WriteString("Reference material:\n")
		sb.WriteString(knowledgeContext)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Write %d exam questions on the topic %q. Mix question types and difficulties.", count, topic.Title)

	var questions []types.ExamQuestion
	if err := s.model.GenerateJSON(dbc.Ctx, system,
		[]anthropic.Message{{Role: types.MessageRoleUser, Content: sb.String()}},
		&questions,
	); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	for i := range questions {
		if questions[i].Marks <= 0 {
			questions[i].Marks = 1
		}
	}
	return questions, nil
}

func (s *examService) evaluateAnswer(ctx context.Context, q types.ExamQuestion, answer string) (*types.ExamEvaluation, error) {
	system := "You mark OCR A-Level Computer Science exam answers. " +
		`Respond only with a JSON object with the keys "score", "max_score", "feedback" and "model_answer". ` +
		"Award marks the way an OCR examiner would."

	prompt := fmt.Sprintf(
		"Question (%d marks):\n%s\n\nMark scheme answer:\n%s\n\nStudent answer:\n%s",
		q.Marks, q.Question, q.Answer, answer,
	)

	var ev types.ExamEvaluation
	if err := s.model.GenerateJSON(ctx, system,
		[]anthropic.Message{{Role: types.MessageRoleUser, Content: prompt}},
		&ev,
	); err != nil {
		return nil, err
	}
	if ev.MaxScore <= 0 {
		ev.MaxScore = float64(q.Marks)
	}
	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > ev.MaxScore {
		ev.Score = ev.MaxScore
	}
	if ev.ModelAnswer == "" {
		ev.ModelAnswer = q.Answer
	}
	return &ev, nil
}

// raiseProficiency lifts the stored proficiency to match an exam result
// but never lowers it.
func (s *examService) raiseProficiency(dbc dbctx.Context, userID uuid.UUID, topicID string, proficiency int, studiedAt time.Time) (*types.TopicProgress, error) {
	current, err := s.progress.GetByUserAndTopic(dbc, userID, topicID)
	if err != nil {
		return nil, err
	}
	target := types.ClampProficiency(proficiency)
	notes := ""
	if current != nil {
		if current.Proficiency >= target {
			return current, nil
		}
		notes = current.Notes
	}
	row := &types.TopicProgress{
		ID:          uuid.New(),
		UserID:      userID,
		TopicID:     topicID,
		Proficiency: target,
		Notes:       notes,
		LastStudied: &studiedAt,
	}
	if err := s.progress.Upsert(dbc, row); err != nil {
		return nil, err
	}
	return s.progress.GetByUserAndTopic(dbc, userID, topicID)
}

func proficiencyForScore(percent float64) int {
	switch {
	case percent >= 90:
		return 5
	case percent >= 80:
		return 4
	case percent >= 70:
		return 3
	case percent >= 60:
		return 2
	default:
		return 1
	}
}

func decodeQuestions(raw datatypes.JSON) ([]types.ExamQuestion, error) {
	var out []types.ExamQuestion
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeAnswers(raw datatypes.JSON) (map[string]string, error) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
