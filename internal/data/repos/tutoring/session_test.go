package tutoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/data/repos/testutil"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
)

func TestSessionRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewSessionRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	userID := uuid.New()
	session := &types.TutorSession{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   "1.1",
		Mode:      types.ModeExplore,
		Status:    types.SessionStatusOpen,
		StartedAt: time.Now().UTC(),
		NextSeq:   1,
	}
	if _, err := repo.Create(dbc, []*types.TutorSession{session}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByIDs(dbc, []uuid.UUID{session.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 || got[0].TopicID != "1.1" {
		t.Fatalf("unexpected rows: %+v", got)
	}

	open, err := repo.ListOpenByUser(dbc, userID)
	if err != nil {
		t.Fatalf("ListOpenByUser: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open session, got %d", len(open))
	}

	locked, err := repo.LockByID(dbc, session.ID)
	if err != nil {
		t.Fatalf("LockByID: %v", err)
	}
	if locked.NextSeq != 1 {
		t.Fatalf("NextSeq = %d, want 1", locked.NextSeq)
	}
	if err := repo.UpdateFields(dbc, session.ID, map[string]interface{}{"next_seq": 2}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	relocked, err := repo.LockByID(dbc, session.ID)
	if err != nil {
		t.Fatalf("re-LockByID: %v", err)
	}
	if relocked.NextSeq != 2 {
		t.Fatalf("NextSeq after update = %d, want 2", relocked.NextSeq)
	}

	now := time.Now().UTC()
	if err := repo.UpdateFields(dbc, session.ID, map[string]interface{}{
		"status":   types.SessionStatusClosed,
		"ended_at": now,
	}); err != nil {
		t.Fatalf("close: %v", err)
	}
	open, err = repo.ListOpenByUser(dbc, userID)
	if err != nil {
		t.Fatalf("ListOpenByUser after close: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("closed session still listed open: %+v", open)
	}

	all, err := repo.ListByUser(dbc, userID, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 session, got %d", len(all))
	}
}
