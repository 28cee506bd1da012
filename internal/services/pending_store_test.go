package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryPendingStoreConsumeOnce(t *testing.T) {
	store := NewMemoryPendingStreamStore()
	ctx := context.Background()
	userID := uuid.New()
	req := PendingStreamRequest{
		RequestID: uuid.New().String(),
		UserID:    userID,
		SessionID: uuid.New(),
		Question:  "What is a stack?",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Put(ctx, req, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Consume(ctx, userID, req.RequestID)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got == nil || got.Question != req.Question || got.SessionID != req.SessionID {
		t.Fatalf("unexpected consumed request: %+v", got)
	}

	again, err := store.Consume(ctx, userID, req.RequestID)
	if err != nil {
		t.Fatalf("second Consume: %v", err)
	}
	if again != nil {
		t.Fatal("a pending request must be consumable at most once")
	}
}

func TestMemoryPendingStoreExpiry(t *testing.T) {
	store := NewMemoryPendingStreamStore()
	ctx := context.Background()
	userID := uuid.New()
	req := PendingStreamRequest{RequestID: uuid.New().String(), UserID: userID, SessionID: uuid.New(), Question: "q"}

	if err := store.Put(ctx, req, 10*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	got, err := store.Consume(ctx, userID, req.RequestID)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got != nil {
		t.Fatal("expired request must not be consumable")
	}
}

func TestMemoryPendingStoreScopedToUser(t *testing.T) {
	store := NewMemoryPendingStreamStore()
	ctx := context.Background()
	owner := uuid.New()
	req := PendingStreamRequest{RequestID: uuid.New().String(), UserID: owner, SessionID: uuid.New(), Question: "q"}
	if err := store.Put(ctx, req, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	stolen, err := store.Consume(ctx, uuid.New(), req.RequestID)
	if err != nil {
		t.Fatalf("Consume as other user: %v", err)
	}
	if stolen != nil {
		t.Fatal("a request id must only resolve for its owner")
	}

	got, err := store.Consume(ctx, owner, req.RequestID)
	if err != nil || got == nil {
		t.Fatalf("owner consume after foreign attempt: got=%v err=%v", got, err)
	}
}
