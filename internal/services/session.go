package services

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	tutoringrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/tutoring"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/anthropic"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

// Returned to the student when the model call fails; the transcript keeps
// only the student's question in that case.
const modelApology = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

const transcriptHistoryLimit = 50

type StartSessionInput struct {
	TopicID string `json:"topic_id"`
	Mode    string `json:"mode"`
}

type TurnResult struct {
	UserMessage      *types.TutorMessage `json:"user_message"`
	AssistantMessage *types.TutorMessage `json:"assistant_message"`
	// Apology is set when the model call failed and AssistantMessage
	// carries the canned fallback, which is not part of the transcript.
	Apology bool `json:"apology,omitempty"`
}

// TurnContext is a validated, prompt-assembled turn whose user message is
// already persisted. The assistant side is completed by the caller once
// model output is in hand.
type TurnContext struct {
	Session     *types.TutorSession
	UserMessage *types.TutorMessage
	System      string
	Messages    []anthropic.Message
}

type SessionService interface {
	Start(dbc dbctx.Context, userID uuid.UUID, input StartSessionInput) (*types.TutorSession, []*types.TutorMessage, error)
	// Turn runs one blocking question/answer exchange.
	Turn(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (*TurnResult, error)
	// PrepareTurn validates the session, assembles the model request and
	// persists the student's raw question. Streaming and blocking turns
	// share this path.
	PrepareTurn(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (*TurnContext, error)
	// CompleteTurn appends the assistant reply to the transcript.
	CompleteTurn(dbc dbctx.Context, session *types.TutorSession, content, model string) (*types.TutorMessage, error)
	End(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, error)
	Rate(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, proficiency int, notes string) (*types.TopicProgress, error)
	Transcript(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, []*types.TutorMessage, error)
	ClearHistory(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) error
	List(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.TutorSession, error)
	// GetOwned loads a session and enforces ownership: 404 when absent,
	// 403 when owned by someone else.
	GetOwned(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, error)
}

type sessionService struct {
	log       *logger.Logger
	db        *gorm.DB
	sessions  tutoringrepo.SessionRepo
	messages  tutoringrepo.MessageRepo
	progress  tutoringrepo.ProgressRepo
	topics    TopicService
	knowledge KnowledgeService
	prompts   *PromptBuilder
	model     anthropic.Client
	notifier  TutorNotifier
}

func NewSessionService(
	log *logger.Logger,
	db *gorm.DB,
	sessions tutoringrepo.SessionRepo,
	messages tutoringrepo.MessageRepo,
	progress tutoringrepo.ProgressRepo,
	topics TopicService,
	knowledge KnowledgeService,
	prompts *PromptBuilder,
	model anthropic.Client,
	notifier TutorNotifier,
) SessionService {
	return &sessionService{
		log:       log.With("service", "SessionService"),
		db:        db,
		sessions:  sessions,
		messages:  messages,
		progress:  progress,
		topics:    topics,
		knowledge: knowledge,
		prompts:   prompts,
		model:     model,
		notifier:  notifier,
	}
}

func (s *sessionService) Start(dbc dbctx.Context, userID uuid.UUID, input StartSessionInput) (*types.TutorSession, []*types.TutorMessage, error) {
	if userID == uuid.Nil {
		return nil, nil, apierr.Invalid(fmt.Errorf("missing user"))
	}
	topicID := strings.TrimSpace(input.TopicID)
	topic, ok := s.topics.Get(topicID)
	if !ok {
		return nil, nil, apierr.Invalid(fmt.Errorf("unknown topic_id %q", topicID))
	}
	mode := strings.TrimSpace(input.Mode)
	if mode == "" {
		mode = types.ModeExplore
	}
	if !types.ValidMode(mode) {
		return nil, nil, apierr.Invalid(fmt.Errorf("invalid mode %q", mode))
	}

	// A student has at most one open session; starting a new one closes
	// any prior open sessions first.
	if err := s.closeOpenSessions(dbc, userID); err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("close prior sessions: %w", err))
	}

	var before *int
	if prog, err := s.progress.GetByUserAndTopic(dbc, userID, topicID); err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("load progress: %w", err))
	} else if prog != nil {
		v := prog.Proficiency
		before = &v
	}

	now := time.Now().UTC()
	session := &types.TutorSession{
		ID:                uuid.New(),
		UserID:            userID,
		TopicID:           topicID,
		Mode:              mode,
		Status:            types.SessionStatusOpen,
		ProficiencyBefore: before,
		StartedAt:         now,
		NextSeq:           1,
	}

	systemPrompt := s.prompts.System(mode, topic.Title)
	welcome := WelcomeMessage(topic.Title, mode)

	var initial []*types.TutorMessage
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		if _, err := s.sessions.Create(inner, []*types.TutorSession{session}); err != nil {
			return err
		}
		rows := []*types.TutorMessage{
			{
				ID:        uuid.New(),
				SessionID: session.ID,
				UserID:    userID,
				Seq:       1,
				Role:      types.MessageRoleSystem,
				Content:   systemPrompt,
			},
			{
				ID:        uuid.New(),
				SessionID: session.ID,
				UserID:    userID,
				Seq:       2,
				Role:      types.MessageRoleAssistant,
				Content:   welcome,
				Model:     s.model.Model(),
			},
		}
		created, err := s.messages.Create(inner, rows)
		if err != nil {
			return err
		}
		initial = created
		return s.sessions.UpdateFields(inner, session.ID, map[string]interface{}{"next_seq": 3})
	})
	if err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("create session: %w", err))
	}
	session.NextSeq = 3

	s.notifier.SessionStarted(userID, session)
	s.log.Info("session started", "user_id", userID, "session_id", session.ID, "topic_id", topicID, "mode", mode)
	return session, initial, nil
}

func (s *sessionService) GetOwned(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, error) {
	if sessionID == uuid.Nil {
		return nil, apierr.Invalid(fmt.Errorf("missing session id"))
	}
	rows, err := s.sessions.GetByIDs(dbc, []uuid.UUID{sessionID})
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("load session: %w", err))
	}
	if len(rows) == 0 {
		return nil, apierr.NotFound(fmt.Errorf("session %s not found", sessionID))
	}
	session := rows[0]
	if session.UserID != userID {
		return nil, apierr.Forbidden(fmt.Errorf("session %s belongs to another user", sessionID))
	}
	return session, nil
}

func (s *sessionService) PrepareTurn(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (*TurnContext, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apierr.Invalid(fmt.Errorf("missing question"))
	}

	session, err := s.GetOwned(dbc, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != types.SessionStatusOpen {
		return nil, apierr.New(http.StatusConflict, apierr.CodeSessionClosed, fmt.Errorf("session %s is closed", sessionID))
	}

	// Knowledge lookup failure degrades to an unaugmented prompt rather
	// than failing the turn.
	knowledgeContext, err := s.knowledge.ContextForTopic(dbc, session.TopicID)
	if err != nil {
		s.log.Warn("knowledge lookup degraded", "code", apierr.CodeKnowledgeDegraded, "session_id", sessionID, "error", err)
		knowledgeContext = ""
	}

	history, err := s.messages.ListBySession(dbc, sessionID, transcriptHistoryLimit)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("load transcript: %w", err))
	}

	system, msgs := s.prompts.Assemble(question, session.Mode, s.topics.DisplayTitle(session.TopicID), knowledgeContext, history)

	// The transcript stores the raw question; the augmented form exists
	// only inside the model request.
	userMsg, err := s.appendMessage(dbc, session, types.MessageRoleUser, question, "")
	if err != nil {
		return nil, err
	}
	s.notifier.MessageCreated(userID, sessionID, userMsg)

	return &TurnContext{
		Session:     session,
		UserMessage: userMsg,
		System:      system,
		Messages:    msgs,
	}, nil
}

func (s *sessionService) CompleteTurn(dbc dbctx.Context, session *types.TutorSession, content, model string) (*types.TutorMessage, error) {
	msg, err := s.appendMessage(dbc, session, types.MessageRoleAssistant, content, model)
	if err != nil {
		return nil, err
	}
	s.notifier.MessageCreated(session.UserID, session.ID, msg)
	return msg, nil
}

func (s *sessionService) Turn(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (*TurnResult, error) {
	tc, err := s.PrepareTurn(dbc, userID, sessionID, question)
	if err != nil {
		return nil, err
	}

	answer, err := s.model.GenerateText(dbc.Ctx, tc.System, tc.Messages)
	if err != nil {
		s.log.Error("model call failed", "session_id", sessionID, "error", err)
		return &TurnResult{
			UserMessage: tc.UserMessage,
			AssistantMessage: &types.TutorMessage{
				SessionID: sessionID,
				UserID:    userID,
				Role:      types.MessageRoleAssistant,
				Content:   modelApology,
				CreatedAt: time.Now().UTC(),
			},
			Apology: true,
		}, nil
	}

	assistantMsg, err := s.CompleteTurn(dbc, tc.Session, answer, s.model.Model())
	if err != nil {
		return nil, err
	}
	return &TurnResult{UserMessage: tc.UserMessage, AssistantMessage: assistantMsg}, nil
}

func (s *sessionService) End(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, error) {
	session, err := s.GetOwned(dbc, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusClosed {
		return session, nil
	}

	summary := s.summarize(dbc, session)

	now := time.Now().UTC()
	duration := int64(now.Sub(session.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	var after *int
	if prog, err := s.progress.GetByUserAndTopic(dbc, userID, session.TopicID); err == nil && prog != nil {
		v := prog.Proficiency
		after = &v
	}

	updates := map[string]interface{}{
		"status":           types.SessionStatusClosed,
		"ended_at":         now,
		"duration_seconds": duration,
		"summary":          summary,
	}
	if after != nil {
		updates["proficiency_after"] = *after
	}
	if err := s.sessions.UpdateFields(dbc, sessionID, updates); err != nil {
		return nil, apierr.Storage(fmt.Errorf("close session: %w", err))
	}
	if err := s.progress.AddStudyTime(dbc, userID, session.TopicID, duration, now); err != nil {
		s.log.Warn("failed to fold study time", "session_id", sessionID, "error", err)
	}

	session.Status = types.SessionStatusClosed
	session.EndedAt = &now
	session.DurationSeconds = &duration
	session.Summary = summary
	session.ProficiencyAfter = after

	s.notifier.SessionClosed(userID, session)
	s.log.Info("session ended", "user_id", userID, "session_id", sessionID, "duration_seconds", duration)
	return session, nil
}

func (s *sessionService) Rate(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, proficiency int, notes string) (*types.TopicProgress, error) {
	session, err := s.GetOwned(dbc, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &types.TopicProgress{
		ID:          uuid.New(),
		UserID:      userID,
		TopicID:     session.TopicID,
		Proficiency: types.ClampProficiency(proficiency),
		Notes:       strings.TrimSpace(notes),
		LastStudied: &now,
	}
	if err := s.progress.Upsert(dbc, row); err != nil {
		return nil, apierr.Storage(fmt.Errorf("save rating: %w", err))
	}
	saved, err := s.progress.GetByUserAndTopic(dbc, userID, session.TopicID)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("reload progress: %w", err))
	}
	s.notifier.ProgressUpdated(userID, saved)
	return saved, nil
}

func (s *sessionService) Transcript(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, []*types.TutorMessage, error) {
	session, err := s.GetOwned(dbc, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListBySession(dbc, sessionID, 0)
	if err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("load transcript: %w", err))
	}
	return session, msgs, nil
}

func (s *sessionService) ClearHistory(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) error {
	session, err := s.GetOwned(dbc, userID, sessionID)
	if err != nil {
		return err
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err = transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		if _, err := s.sessions.LockByID(inner, sessionID); err != nil {
			return err
		}
		if err := s.messages.FullDeleteBySession(inner, sessionID); err != nil {
			return err
		}
		return s.sessions.UpdateFields(inner, sessionID, map[string]interface{}{"next_seq": 1})
	})
	if err != nil {
		return apierr.Storage(fmt.Errorf("clear history: %w", err))
	}
	s.log.Info("session history cleared", "user_id", userID, "session_id", session.ID)
	return nil
}

func (s *sessionService) List(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.TutorSession, error) {
	rows, err := s.sessions.ListByUser(dbc, userID, limit)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("list sessions: %w", err))
	}
	return rows, nil
}

// appendMessage assigns the next transcript seq under a row lock and
// inserts the message in the same transaction.
func (s *sessionService) appendMessage(dbc dbctx.Context, session *types.TutorSession, role, content, model string) (*types.TutorMessage, error) {
	var out *types.TutorMessage
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		locked, err := s.sessions.LockByID(inner, session.ID)
		if err != nil {
			return err
		}
		msg := &types.TutorMessage{
			ID:        uuid.New(),
			SessionID: session.ID,
			UserID:    session.UserID,
			Seq:       locked.NextSeq,
			Role:      role,
			Content:   content,
			Model:     model,
		}
		if _, err := s.messages.Create(inner, []*types.TutorMessage{msg}); err != nil {
			return err
		}
		if err := s.sessions.UpdateFields(inner, session.ID, map[string]interface{}{"next_seq": locked.NextSeq + 1}); err != nil {
			return err
		}
		out = msg
		return nil
	})
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("append %s message: %w", role, err))
	}
	return out, nil
}

func (s *sessionService) closeOpenSessions(dbc dbctx.Context, userID uuid.UUID) error {
	open, err := s.sessions.ListOpenByUser(dbc, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, prior := range open {
		duration := int64(now.Sub(prior.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}
		updates := map[string]interface{}{
			"status":           types.SessionStatusClosed,
			"ended_at":         now,
			"duration_seconds": duration,
		}
		if err := s.sessions.UpdateFields(dbc, prior.ID, updates); err != nil {
			return err
		}
		if err := s.progress.AddStudyTime(dbc, userID, prior.TopicID, duration, now); err != nil {
			s.log.Warn("failed to fold study time for auto-closed session", "session_id", prior.ID, "error", err)
		}
		prior.Status = types.SessionStatusClosed
		prior.EndedAt = &now
		prior.DurationSeconds = &duration
		s.notifier.SessionClosed(userID, prior)
	}
	return nil
}

// summarize asks the model for a short session recap; failures leave the
// summary empty rather than blocking close.
func (s *sessionService) summarize(dbc dbctx.Context, session *types.TutorSession) string {
	msgs, err := s.messages.ListRecent(dbc, session.ID, 30)
	if err != nil || len(msgs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range msgs {
		if m.Role == types.MessageRoleSystem {
			continue
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return ""
	}
	summary, err := s.model.GenerateText(dbc.Ctx,
		"You summarise tutoring sessions. Reply with two or three sentences covering what was studied and how the student got on.",
		[]anthropic.Message{{Role: types.MessageRoleUser, Content: sb.String()}},
	)
	if err != nil {
		s.log.Warn("session summary failed", "session_id", session.ID, "error", err)
		return ""
	}
	return strings.TrimSpace(summary)
}
