package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
)

func newStreamFixture(t *testing.T, sessions *fakeSessions, model *fakeModel) (StreamService, *fakeNotifier) {
	t.Helper()
	notifier := &fakeNotifier{}
	svc := NewStreamService(testLogger(t), sessions, NewMemoryPendingStreamStore(), model, notifier, time.Minute)
	return svc, notifier
}

func openSession(userID uuid.UUID) *types.TutorSession {
	return &types.TutorSession{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   "1.1",
		Mode:      types.ModeExplore,
		Status:    types.SessionStatusOpen,
		StartedAt: time.Now().UTC(),
	}
}

func TestStreamDeliversDeltasAndPersistsOnce(t *testing.T) {
	userID := uuid.New()
	sessions := &fakeSessions{session: openSession(userID)}
	model := &fakeModel{chunks: []string{"Hello, ", "world!"}}
	svc, notifier := newStreamFixture(t, sessions, model)
	dbc := testDBC()

	requestID, err := svc.Begin(dbc, userID, sessions.session.ID, "Say hello")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var events []StreamEvent
	err = svc.Attach(dbc, userID, requestID, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 2 deltas + terminal event, got %d: %+v", len(events), events)
	}
	if events[0].Text != "Hello, " || events[1].Text != "world!" {
		t.Fatalf("deltas out of order: %+v", events[:2])
	}
	final := events[2]
	if !final.Done || final.FullResponse != "Hello, world!" {
		t.Fatalf("bad terminal event: %+v", final)
	}
	if len(sessions.persisted) != 1 || sessions.persisted[0] != "Hello, world!" {
		t.Fatalf("expected exactly one persisted assistant message, got %v", sessions.persisted)
	}
	if notifier.done != 1 || len(notifier.deltas) != 2 {
		t.Fatalf("notifier saw done=%d deltas=%d", notifier.done, len(notifier.deltas))
	}
}

func TestStreamBeginPersistsQuestionAndParksPrompt(t *testing.T) {
	userID := uuid.New()
	sessions := &fakeSessions{session: openSession(userID)}
	model := &fakeModel{chunks: []string{"ok"}}
	svc, _ := newStreamFixture(t, sessions, model)
	dbc := testDBC()

	requestID, err := svc.Begin(dbc, userID, sessions.session.ID, "What is a stack?")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// The question is persisted when the turn begins, so it survives a
	// client that never attaches.
	if len(sessions.prepared) != 1 || sessions.prepared[0] != "What is a stack?" {
		t.Fatalf("expected the question prepared at Begin, got %v", sessions.prepared)
	}

	if err := svc.Attach(dbc, userID, requestID, func(StreamEvent) error { return nil }); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	// Attach replays the parked prompt; it must not assemble (or persist
	// the question) a second time.
	if len(sessions.prepared) != 1 {
		t.Fatalf("attach re-prepared the turn: %v", sessions.prepared)
	}
	if model.lastSystem != "system prompt" {
		t.Fatalf("model did not receive the parked system prompt: %q", model.lastSystem)
	}
	if len(model.lastMessages) != 1 || model.lastMessages[0].Content != "What is a stack?" {
		t.Fatalf("model did not receive the parked messages: %+v", model.lastMessages)
	}
}

func TestStreamAttachConsumesRequestOnce(t *testing.T) {
	userID := uuid.New()
	sessions := &fakeSessions{session: openSession(userID)}
	svc, _ := newStreamFixture(t, sessions, &fakeModel{chunks: []string{"hi"}})
	dbc := testDBC()

	requestID, err := svc.Begin(dbc, userID, sessions.session.ID, "q")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := svc.Attach(dbc, userID, requestID, func(StreamEvent) error { return nil }); err != nil {
		t.Fatalf("first Attach: %v", err)
	}

	var events []StreamEvent
	err = svc.Attach(dbc, userID, requestID, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if apierr.CodeOf(err) != apierr.CodeStreamNotFound {
		t.Fatalf("second attach: got code %q", apierr.CodeOf(err))
	}
	if len(events) != 1 || events[0].Error != apierr.CodeStreamNotFound {
		t.Fatalf("expected a stream_not_found error event, got %+v", events)
	}
	if len(sessions.persisted) != 1 {
		t.Fatalf("reattach must not persist again: %v", sessions.persisted)
	}
}

func TestStreamAttachUnknownRequest(t *testing.T) {
	userID := uuid.New()
	sessions := &fakeSessions{session: openSession(userID)}
	svc, _ := newStreamFixture(t, sessions, &fakeModel{})

	err := svc.Attach(testDBC(), userID, uuid.New().String(), func(StreamEvent) error { return nil })
	if apierr.CodeOf(err) != apierr.CodeStreamNotFound {
		t.Fatalf("got code %q, want %q", apierr.CodeOf(err), apierr.CodeStreamNotFound)
	}
}

func TestStreamModelFailureEmitsApology(t *testing.T) {
	userID := uuid.New()
	sessions := &fakeSessions{session: openSession(userID)}
	model := &fakeModel{streamErr: errors.New("upstream boom")}
	svc, notifier := newStreamFixture(t, sessions, model)
	dbc := testDBC()

	requestID, err := svc.Begin(dbc, userID, sessions.session.ID, "q")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var events []StreamEvent
	err = svc.Attach(dbc, userID, requestID, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if err == nil {
		t.Fatal("expected the model error to surface")
	}
	last := events[len(events)-1]
	if last.Error != modelApology {
		t.Fatalf("expected apology error event, got %+v", last)
	}
	if len(sessions.persisted) != 0 {
		t.Fatalf("failed stream must not persist: %v", sessions.persisted)
	}
	if len(notifier.errs) != 1 || notifier.errs[0] != modelApology {
		t.Fatalf("notifier errors = %v", notifier.errs)
	}
}

func TestStreamClientCancellationDiscardsPartial(t *testing.T) {
	userID := uuid.New()
	sessions := &fakeSessions{session: openSession(userID)}
	model := &fakeModel{chunks: []string{"partial "}, streamErr: context.Canceled}
	svc, _ := newStreamFixture(t, sessions, model)

	requestID, err := svc.Begin(testDBC(), userID, sessions.session.ID, "q")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var events []StreamEvent
	err = svc.Attach(dbctx.Context{Ctx: ctx}, userID, requestID, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("cancelled stream should not report an error: %v", err)
	}
	if len(sessions.persisted) != 0 {
		t.Fatalf("cancelled stream must discard partial output: %v", sessions.persisted)
	}
	for _, ev := range events {
		if ev.Done || ev.Error != "" {
			t.Fatalf("cancelled stream must end without a terminal event: %+v", ev)
		}
	}
}

func TestStreamBeginRejectsClosedSession(t *testing.T) {
	userID := uuid.New()
	session := openSession(userID)
	session.Status = types.SessionStatusClosed
	svc, _ := newStreamFixture(t, &fakeSessions{session: session}, &fakeModel{})

	_, err := svc.Begin(testDBC(), userID, session.ID, "q")
	if apierr.CodeOf(err) != apierr.CodeSessionClosed {
		t.Fatalf("got code %q, want %q", apierr.CodeOf(err), apierr.CodeSessionClosed)
	}
}
