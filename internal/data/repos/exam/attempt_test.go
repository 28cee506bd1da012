package exam

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/HaiderAli3D/LOKI-AI/internal/data/repos/testutil"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
)

func TestAttemptRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewAttemptRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	userID := uuid.New()
	attempt := &types.ExamAttempt{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   "1.1",
		Questions: datatypes.JSON([]byte(`[{"question":"q","answer":"a","marks":1}]`)),
		Answers:   datatypes.JSON([]byte("{}")),
		StartedAt: time.Now().UTC(),
	}
	if _, err := repo.Create(dbc, []*types.ExamAttempt{attempt}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByIDs(dbc, []uuid.UUID{attempt.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 || got[0].TopicID != "1.1" {
		t.Fatalf("unexpected rows: %+v", got)
	}

	completed, err := repo.ListCompletedByUser(dbc, userID)
	if err != nil {
		t.Fatalf("ListCompletedByUser: %v", err)
	}
	if len(completed) != 0 {
		t.Fatalf("open attempt listed as completed: %+v", completed)
	}

	now := time.Now().UTC()
	if err := repo.UpdateFields(dbc, attempt.ID, map[string]interface{}{
		"score":     87.5,
		"completed": true,
		"ended_at":  now,
		"feedback":  datatypes.JSON([]byte(`[{"score":1,"max_score":1,"feedback":"ok"}]`)),
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	completed, err = repo.ListCompletedByUser(dbc, userID)
	if err != nil {
		t.Fatalf("ListCompletedByUser after close: %v", err)
	}
	if len(completed) != 1 || completed[0].Score == nil || *completed[0].Score != 87.5 {
		t.Fatalf("unexpected completed rows: %+v", completed)
	}

	all, err := repo.ListByUser(dbc, userID, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(all))
	}
}
