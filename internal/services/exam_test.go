package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
)

type fakeAttemptRepo struct {
	rows map[uuid.UUID]*types.ExamAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{rows: map[uuid.UUID]*types.ExamAttempt{}}
}

func (r *fakeAttemptRepo) Create(dbc dbctx.Context, rows []*types.ExamAttempt) ([]*types.ExamAttempt, error) {
	for _, a := range rows {
		r.rows[a.ID] = a
	}
	return rows, nil
}

func (r *fakeAttemptRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ExamAttempt, error) {
	var out []*types.ExamAttempt
	for _, id := range ids {
		if a, ok := r.rows[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ExamAttempt, error) {
	var out []*types.ExamAttempt
	for _, a := range r.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) ListCompletedByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ExamAttempt, error) {
	var out []*types.ExamAttempt
	for _, a := range r.rows {
		if a.UserID == userID && a.Completed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	a, ok := r.rows[id]
	if !ok {
		return nil
	}
	if v, ok := updates["answers"].(datatypes.JSON); ok {
		a.Answers = v
	}
	if v, ok := updates["feedback"].(datatypes.JSON); ok {
		a.Feedback = v
	}
	if v, ok := updates["score"].(float64); ok {
		a.Score = &v
	}
	if v, ok := updates["completed"].(bool); ok {
		a.Completed = v
	}
	return nil
}

func newExamFixture(t *testing.T, attempts *fakeAttemptRepo, progress *fakeProgressRepo, model *fakeModel) ExamService {
	t.Helper()
	repo := &fakeFragmentRepo{}
	topics := testTopics(t)
	knowledge := NewKnowledgeService(testLogger(t), repo, topics, 0)
	return NewExamService(testLogger(t), attempts, progress, topics, knowledge, model, &fakeNotifier{})
}

func TestProficiencyForScore(t *testing.T) {
	cases := []struct {
		percent float64
		want    int
	}{
		{100, 5}, {90, 5},
		{89.9, 4}, {80, 4},
		{79.9, 3}, {70, 3},
		{69.9, 2}, {60, 2},
		{59.9, 1}, {0, 1},
	}
	for _, tc := range cases {
		if got := proficiencyForScore(tc.percent); got != tc.want {
			t.Errorf("proficiencyForScore(%v)=%d, want %d", tc.percent, got, tc.want)
		}
	}
}

func TestRaiseProficiencyOnlyRaises(t *testing.T) {
	userID := uuid.New()
	progress := newFakeProgressRepo()
	now := time.Now().UTC()
	_ = progress.Upsert(testDBC(), &types.TopicProgress{
		ID: uuid.New(), UserID: userID, TopicID: "1.1", Proficiency: 4, Notes: "keep me",
	})
	svc := newExamFixture(t, newFakeAttemptRepo(), progress, &fakeModel{}).(*examService)

	// Lower exam result leaves the stored level alone.
	row, err := svc.raiseProficiency(testDBC(), userID, "1.1", 2, now)
	if err != nil {
		t.Fatalf("raiseProficiency: %v", err)
	}
	if row.Proficiency != 4 {
		t.Fatalf("proficiency lowered to %d", row.Proficiency)
	}

	// Higher result lifts it and keeps the notes.
	row, err = svc.raiseProficiency(testDBC(), userID, "1.1", 5, now)
	if err != nil {
		t.Fatalf("raiseProficiency: %v", err)
	}
	if row.Proficiency != 5 || row.Notes != "keep me" {
		t.Fatalf("unexpected row after raise: %+v", row)
	}

	// Absent row is created.
	row, err = svc.raiseProficiency(testDBC(), userID, "1.4.2", 3, now)
	if err != nil || row == nil || row.Proficiency != 3 {
		t.Fatalf("raise on absent row: row=%+v err=%v", row, err)
	}
}

func TestExamCompleteScoresAndFoldsProgress(t *testing.T) {
	userID := uuid.New()
	attempts := newFakeAttemptRepo()
	progress := newFakeProgressRepo()
	// Every marked answer comes back full marks.
	model := &fakeModel{jsonOut: `{"score":1,"max_score":1,"feedback":"Correct."}`}
	svc := newExamFixture(t, attempts, progress, model)

	questions := []types.ExamQuestion{
		{Question: "Define a stack", Type: "short_answer", Answer: "LIFO structure", Marks: 1},
		{Question: "Define a queue", Type: "short_answer", Answer: "FIFO structure", Marks: 1},
	}
	qJSON, _ := json.Marshal(questions)
	attempt := &types.ExamAttempt{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   "1.4.2",
		Questions: datatypes.JSON(qJSON),
		Answers:   datatypes.JSON([]byte(`{"0":"last in first out"}`)),
		StartedAt: time.Now().UTC(),
	}
	if _, err := attempts.Create(testDBC(), []*types.ExamAttempt{attempt}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	result, err := svc.Complete(testDBC(), userID, attempt.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Score != 50 {
		t.Fatalf("score = %v, want 50 (one of two marks)", result.Score)
	}
	if result.Proficiency != 1 {
		t.Fatalf("proficiency = %d, want 1 for 50%%", result.Proficiency)
	}
	if len(result.Evaluations) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(result.Evaluations))
	}
	unanswered := result.Evaluations[1]
	if unanswered.Score != 0 || unanswered.Feedback != "No answer given." {
		t.Fatalf("unanswered question evaluation: %+v", unanswered)
	}
	if unanswered.ModelAnswer != "FIFO structure" {
		t.Fatalf("unanswered model answer: %q", unanswered.ModelAnswer)
	}
	if !attempt.Completed {
		t.Fatal("attempt not marked completed")
	}

	saved, _ := progress.GetByUserAndTopic(testDBC(), userID, "1.4.2")
	if saved == nil || saved.Proficiency != 1 {
		t.Fatalf("progress not folded: %+v", saved)
	}

	// Completing twice conflicts.
	if _, err := svc.Complete(testDBC(), userID, attempt.ID); apierr.CodeOf(err) != apierr.CodeConflict {
		t.Fatalf("second complete: got code %q", apierr.CodeOf(err))
	}
}

func TestExamSubmitAnswerBounds(t *testing.T) {
	userID := uuid.New()
	attempts := newFakeAttemptRepo()
	svc := newExamFixture(t, attempts, newFakeProgressRepo(), &fakeModel{})

	qJSON, _ := json.Marshal([]types.ExamQuestion{{Question: "q", Answer: "a", Marks: 1}})
	attempt := &types.ExamAttempt{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   "1.1",
		Questions: datatypes.JSON(qJSON),
		Answers:   datatypes.JSON([]byte("{}")),
		StartedAt: time.Now().UTC(),
	}
	_, _ = attempts.Create(testDBC(), []*types.ExamAttempt{attempt})

	if _, err := svc.SubmitAnswer(testDBC(), userID, attempt.ID, 5, "x"); apierr.CodeOf(err) != apierr.CodeInvalidRequest {
		t.Fatalf("out of range index: got code %q", apierr.CodeOf(err))
	}

	updated, err := svc.SubmitAnswer(testDBC(), userID, attempt.ID, 0, "my answer")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	answers, err := decodeAnswers(updated.Answers)
	if err != nil {
		t.Fatalf("decodeAnswers: %v", err)
	}
	if answers["0"] != "my answer" {
		t.Fatalf("answer not recorded: %v", answers)
	}

	// Ownership is enforced before any mutation.
	if _, err := svc.SubmitAnswer(testDBC(), uuid.New(), attempt.ID, 0, "x"); apierr.CodeOf(err) != apierr.CodeForbidden {
		t.Fatalf("foreign submit: got code %q", apierr.CodeOf(err))
	}
}

func TestExamStartGeneratesAndStripsAnswers(t *testing.T) {
	userID := uuid.New()
	attempts := newFakeAttemptRepo()
	model := &fakeModel{jsonOut: `[
		{"question":"What is RISC?","type":"short_answer","answer":"Reduced instruction set","marks":2},
		{"question":"Pick one","type":"multiple_choice","options":["a","b"],"answer":"a","marks":0}
	]`}
	svc := newExamFixture(t, attempts, newFakeProgressRepo(), model)

	attempt, student, err := svc.Start(testDBC(), userID, StartExamInput{TopicID: "1.1.2", Count: 2})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(student) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(student))
	}
	if student[1].Marks != 1 {
		t.Fatalf("zero-mark question should default to 1 mark, got %d", student[1].Marks)
	}

	// Stored questions keep the mark scheme; the student copy never does.
	stored, err := decodeQuestions(attempt.Questions)
	if err != nil {
		t.Fatalf("decodeQuestions: %v", err)
	}
	if stored[0].Answer != "Reduced instruction set" {
		t.Fatalf("stored question lost the answer: %+v", stored[0])
	}

	if _, _, err := svc.Start(testDBC(), userID, StartExamInput{TopicID: "7.7.7"}); apierr.CodeOf(err) != apierr.CodeInvalidRequest {
		t.Fatalf("unknown topic: got code %q", apierr.CodeOf(err))
	}
}
