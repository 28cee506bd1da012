package knowledge

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/data/repos/testutil"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
)

func TestFragmentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFragmentRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	// Topic ids and hashes are unique per run so the shared test database
	// never bleeds rows between packages.
	topicA := "test." + uuid.NewString()
	topicB := "test." + uuid.NewString()
	hashOne := uuid.NewString()
	hashTwo := uuid.NewString()

	userID := uuid.New()
	rows := []*types.KnowledgeFragment{
		{ID: uuid.New(), TopicID: topicA, Title: "First", Content: "one", ContentHash: hashOne, CreatedBy: &userID},
		{ID: uuid.New(), TopicID: topicA, Title: "Second", Content: "two", ContentHash: hashTwo},
		{ID: uuid.New(), TopicID: topicB, Title: "Other", Content: "three", ContentHash: uuid.NewString()},
	}
	if _, err := repo.Create(dbc, rows); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byHash, err := repo.GetByContentHash(dbc, hashTwo)
	if err != nil {
		t.Fatalf("GetByContentHash: %v", err)
	}
	if byHash == nil || byHash.Title != "Second" {
		t.Fatalf("unexpected row: %+v", byHash)
	}
	missing, err := repo.GetByContentHash(dbc, "no-such-hash")
	if err != nil {
		t.Fatalf("GetByContentHash miss: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown hash, got %+v", missing)
	}

	listed, err := repo.ListByTopicIDs(dbc, []string{topicA, topicB})
	if err != nil {
		t.Fatalf("ListByTopicIDs: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(listed))
	}
	n, err := repo.CountByTopicID(dbc, topicA)
	if err != nil {
		t.Fatalf("CountByTopicID: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}
