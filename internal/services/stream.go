package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/anthropic"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

// StreamEvent is one SSE frame on the attach response. Incremental frames
// carry Text; the terminal frame carries Done plus the full response; a
// failed stream ends with Error instead.
type StreamEvent struct {
	Text         string `json:"text,omitempty"`
	Done         bool   `json:"done,omitempty"`
	FullResponse string `json:"full_response,omitempty"`
	Error        string `json:"error,omitempty"`
}

// StreamSink delivers one event to the attached client; returning an
// error abandons delivery but not persistence.
type StreamSink func(ev StreamEvent) error

type StreamService interface {
	// Begin validates the turn and parks it for attach, returning the
	// request id the client streams from.
	Begin(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (string, error)
	// Attach consumes a pending request, streams model output into sink,
	// and persists the assistant message exactly once on completion.
	Attach(dbc dbctx.Context, userID uuid.UUID, requestID string, sink StreamSink) error
}

type streamService struct {
	log      *logger.Logger
	sessions SessionService
	pending  PendingStreamStore
	model    anthropic.Client
	notifier TutorNotifier
	ttl      time.Duration
}

func NewStreamService(
	log *logger.Logger,
	sessions SessionService,
	pending PendingStreamStore,
	model anthropic.Client,
	notifier TutorNotifier,
	ttl time.Duration,
) StreamService {
	if ttl <= 0 {
		ttl = DefaultPendingStreamTTL
	}
	return &streamService{
		log:      log.With("service", "StreamService"),
		sessions: sessions,
		pending:  pending,
		model:    model,
		notifier: notifier,
		ttl:      ttl,
	}
}

func (s *streamService) Begin(dbc dbctx.Context, userID uuid.UUID, sessionID uuid.UUID, question string) (string, error) {
	// PrepareTurn validates ownership and session state, persists the
	// raw question, and assembles the prompt. The parked bundle carries
	// the assembled prompt so the question survives even when no client
	// ever attaches.
	tc, err := s.sessions.PrepareTurn(dbc, userID, sessionID, question)
	if err != nil {
		return "", err
	}

	requestID := uuid.New().String()
	req := PendingStreamRequest{
		RequestID: requestID,
		UserID:    userID,
		SessionID: sessionID,
		TopicID:   tc.Session.TopicID,
		Mode:      tc.Session.Mode,
		Question:  tc.UserMessage.Content,
		System:    tc.System,
		Messages:  tc.Messages,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.pending.Put(dbc.Ctx, req, s.ttl); err != nil {
		return "", apierr.Storage(fmt.Errorf("park stream request: %w", err))
	}
	s.log.Debug("stream request parked", "user_id", userID, "session_id", sessionID, "request_id", requestID)
	return requestID, nil
}

func (s *streamService) Attach(dbc dbctx.Context, userID uuid.UUID, requestID string, sink StreamSink) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return apierr.Invalid(fmt.Errorf("missing request id"))
	}

	req, err := s.pending.Consume(dbc.Ctx, userID, requestID)
	if err != nil {
		_ = sink(StreamEvent{Error: apierr.CodePersistence})
		return apierr.Storage(fmt.Errorf("consume stream request: %w", err))
	}
	if req == nil {
		_ = sink(StreamEvent{Error: apierr.CodeStreamNotFound})
		return apierr.New(http.StatusNotFound, apierr.CodeStreamNotFound,
			fmt.Errorf("stream request %s not found, expired, or already consumed", requestID))
	}

	session, err := s.sessions.GetOwned(dbc, userID, req.SessionID)
	if err != nil {
		_ = sink(StreamEvent{Error: apierr.CodeOf(err)})
		return err
	}

	full, err := s.model.StreamText(dbc.Ctx, req.System, req.Messages, func(delta string) {
		if serr := sink(StreamEvent{Text: delta}); serr != nil {
			s.log.Debug("stream sink write failed", "request_id", requestID, "error", serr)
		}
		s.notifier.MessageDelta(userID, req.SessionID, requestID, delta)
	})
	if err != nil {
		if dbc.Ctx.Err() != nil {
			// Client went away mid-stream: partial output is discarded,
			// nothing is persisted.
			s.log.Info("stream cancelled", "request_id", requestID, "session_id", req.SessionID)
			return nil
		}
		s.log.Error("model stream failed", "request_id", requestID, "error", err)
		_ = sink(StreamEvent{Error: modelApology})
		s.notifier.MessageError(userID, req.SessionID, requestID, modelApology)
		return err
	}

	// Persistence must survive the client disconnecting right after the
	// final delta.
	persistDBC := dbctx.Context{Ctx: context.WithoutCancel(dbc.Ctx)}
	msg, err := s.sessions.CompleteTurn(persistDBC, session, full, s.model.Model())
	if err != nil {
		_ = sink(StreamEvent{Error: apierr.CodeOf(err)})
		s.notifier.MessageError(userID, req.SessionID, requestID, apierr.CodeOf(err))
		return err
	}

	if serr := sink(StreamEvent{Done: true, FullResponse: full}); serr != nil {
		s.log.Debug("terminal stream event not delivered", "request_id", requestID, "error", serr)
	}
	s.notifier.MessageDone(userID, req.SessionID, requestID, msg)
	s.log.Info("stream completed", "request_id", requestID, "session_id", req.SessionID, "chars", len(full))
	return nil
}
