package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/anthropic"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

const testCatalogYAML = `topics:
  - id: "1"
    title: "Computer Systems"
  - id: "1.1"
    title: "Processors"
  - id: "1.1.2"
    title: "Types of processor"
  - id: "1.4"
    title: "Data types, data structures and algorithms"
  - id: "1.4.2"
    title: "Data structures"
  - id: "2.3"
    title: "Algorithms"
`

func testLogger(t testing.TB) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func testTopics(t testing.TB) TopicService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topics.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	svc, err := NewTopicService(testLogger(t), path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return svc
}

func testDBC() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

type fakeFragmentRepo struct {
	rows []*types.KnowledgeFragment
}

func (r *fakeFragmentRepo) Create(dbc dbctx.Context, rows []*types.KnowledgeFragment) ([]*types.KnowledgeFragment, error) {
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *fakeFragmentRepo) GetByContentHash(dbc dbctx.Context, hash string) (*types.KnowledgeFragment, error) {
	for _, f := range r.rows {
		if f.ContentHash == hash {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeFragmentRepo) ListByTopicIDs(dbc dbctx.Context, topicIDs []string) ([]*types.KnowledgeFragment, error) {
	wanted := map[string]bool{}
	for _, id := range topicIDs {
		wanted[id] = true
	}
	var out []*types.KnowledgeFragment
	for _, f := range r.rows {
		if wanted[f.TopicID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFragmentRepo) CountByTopicID(dbc dbctx.Context, topicID string) (int64, error) {
	var n int64
	for _, f := range r.rows {
		if f.TopicID == topicID {
			n++
		}
	}
	return n, nil
}

type fakeProgressRepo struct {
	rows map[string]*types.TopicProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: map[string]*types.TopicProgress{}}
}

func progressKey(userID uuid.UUID, topicID string) string {
	return userID.String() + "|" + topicID
}

func (r *fakeProgressRepo) Upsert(dbc dbctx.Context, row *types.TopicProgress) error {
	key := progressKey(row.UserID, row.TopicID)
	if existing, ok := r.rows[key]; ok {
		existing.Proficiency = row.Proficiency
		existing.Notes = row.Notes
		existing.LastStudied = row.LastStudied
		return nil
	}
	cp := *row
	r.rows[key] = &cp
	return nil
}

func (r *fakeProgressRepo) GetByUserAndTopic(dbc dbctx.Context, userID uuid.UUID, topicID string) (*types.TopicProgress, error) {
	return r.rows[progressKey(userID, topicID)], nil
}

func (r *fakeProgressRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.TopicProgress, error) {
	var out []*types.TopicProgress
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) AddStudyTime(dbc dbctx.Context, userID uuid.UUID, topicID string, seconds int64, studiedAt time.Time) error {
	key := progressKey(userID, topicID)
	row, ok := r.rows[key]
	if !ok {
		row = &types.TopicProgress{ID: uuid.New(), UserID: userID, TopicID: topicID, Proficiency: 0}
		r.rows[key] = row
	}
	row.StudyTimeSeconds += seconds
	row.SessionCount++
	row.LastStudied = &studiedAt
	return nil
}

// fakeModel scripts the model adapter: fixed text for blocking calls,
// fixed chunk sequence for streaming, fixed JSON payload for structured
// calls.
type fakeModel struct {
	name      string
	text      string
	textErr   error
	jsonOut   string
	jsonErr   error
	chunks    []string
	streamErr error

	textCalls    int
	streamCalls  int
	lastSystem   string
	lastMessages []anthropic.Message
}

func (m *fakeModel) Model() string {
	if m.name == "" {
		return "test-model"
	}
	return m.name
}

func (m *fakeModel) GenerateText(ctx context.Context, system string, msgs []anthropic.Message) (string, error) {
	m.textCalls++
	if m.textErr != nil {
		return "", m.textErr
	}
	return m.text, nil
}

func (m *fakeModel) GenerateJSON(ctx context.Context, system string, msgs []anthropic.Message, out any) error {
	if m.jsonErr != nil {
		return m.jsonErr
	}
	return json.Unmarshal([]byte(m.jsonOut), out)
}

func (m *fakeModel) StreamText(ctx context.Context, system string, msgs []anthropic.Message, onDelta func(string)) (string, error) {
	m.streamCalls++
	m.lastSystem = system
	m.lastMessages = msgs
	var full string
	for _, c := range m.chunks {
		full += c
		if onDelta != nil {
			onDelta(c)
		}
	}
	if m.streamErr != nil {
		return "", m.streamErr
	}
	return full, nil
}

type fakeNotifier struct {
	deltas  []string
	done    int
	errs    []string
	created int
}

func (n *fakeNotifier) SessionStarted(userID uuid.UUID, session *types.TutorSession) {}
func (n *fakeNotifier) SessionClosed(userID uuid.UUID, session *types.TutorSession)  {}
func (n *fakeNotifier) MessageCreated(userID uuid.UUID, sessionID uuid.UUID, msg *types.TutorMessage) {
	n.created++
}
func (n *fakeNotifier) MessageDelta(userID uuid.UUID, sessionID uuid.UUID, requestID string, delta string) {
	n.deltas = append(n.deltas, delta)
}
func (n *fakeNotifier) MessageDone(userID uuid.UUID, sessionID uuid.UUID, requestID string, msg *types.TutorMessage) {
	n.done++
}
func (n *fakeNotifier) MessageError(userID uuid.UUID, sessionID uuid.UUID, requestID string, errMsg string) {
	n.errs = append(n.errs, errMsg)
}
func (n *fakeNotifier) ProgressUpdated(userID uuid.UUID, progress *types.TopicProgress) {}
func (n *fakeNotifier) ExamCompleted(userID uuid.UUID, attempt *types.ExamAttempt)     {}

// fakeSessions stands in for SessionService in stream tests: PrepareTurn
// records the question and hands back a scripted context, CompleteTurn
// records what was persisted.
type fakeSessions struct {
	session    *types.TutorSession
	prepareErr error
	prepared   []string
	persisted  []string
}

func (s *fakeSessions) GetOwned(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, error) {
	if s.session == nil || s.session.ID != sessionID {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return s.session, nil
}

func (s *fakeSessions) PrepareTurn(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (*TurnContext, error) {
	if s.prepareErr != nil {
		return nil, s.prepareErr
	}
	session, err := s.GetOwned(dbc, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != types.SessionStatusOpen {
		return nil, apierr.New(http.StatusConflict, apierr.CodeSessionClosed, fmt.Errorf("session %s is closed", sessionID))
	}
	s.prepared = append(s.prepared, question)
	return &TurnContext{
		Session: s.session,
		UserMessage: &types.TutorMessage{
			ID:        uuid.New(),
			SessionID: sessionID,
			UserID:    userID,
			Role:      types.MessageRoleUser,
			Content:   question,
		},
		System:   "system prompt",
		Messages: []anthropic.Message{{Role: types.MessageRoleUser, Content: question}},
	}, nil
}

func (s *fakeSessions) CompleteTurn(dbc dbctx.Context, session *types.TutorSession, content, model string) (*types.TutorMessage, error) {
	s.persisted = append(s.persisted, content)
	return &types.TutorMessage{
		ID:        uuid.New(),
		SessionID: session.ID,
		UserID:    session.UserID,
		Role:      types.MessageRoleAssistant,
		Content:   content,
		Model:     model,
	}, nil
}

func (s *fakeSessions) Start(dbc dbctx.Context, userID uuid.UUID, input StartSessionInput) (*types.TutorSession, []*types.TutorMessage, error) {
	return nil, nil, nil
}

func (s *fakeSessions) Turn(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (*TurnResult, error) {
	return nil, nil
}

func (s *fakeSessions) End(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, error) {
	return nil, nil
}

func (s *fakeSessions) Rate(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, proficiency int, notes string) (*types.TopicProgress, error) {
	return nil, nil
}

func (s *fakeSessions) Transcript(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) (*types.TutorSession, []*types.TutorMessage, error) {
	return nil, nil, nil
}

func (s *fakeSessions) ClearHistory(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID) error {
	return nil
}

func (s *fakeSessions) List(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.TutorSession, error) {
	return nil, nil
}
