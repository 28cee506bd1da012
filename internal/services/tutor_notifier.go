package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/realtime"
)

// TutorNotifier publishes session lifecycle and streaming events on the
// owning user's channel. All methods are fire and forget.
type TutorNotifier interface {
	SessionStarted(userID uuid.UUID, session *types.TutorSession)
	SessionClosed(userID uuid.UUID, session *types.TutorSession)
	MessageCreated(userID uuid.UUID, sessionID uuid.UUID, msg *types.TutorMessage)
	MessageDelta(userID uuid.UUID, sessionID uuid.UUID, requestID string, delta string)
	MessageDone(userID uuid.UUID, sessionID uuid.UUID, requestID string, msg *types.TutorMessage)
	MessageError(userID uuid.UUID, sessionID uuid.UUID, requestID string, errMsg string)
	ProgressUpdated(userID uuid.UUID, progress *types.TopicProgress)
	ExamCompleted(userID uuid.UUID, attempt *types.ExamAttempt)
}

type tutorNotifier struct {
	emit SSEEmitter
}

func NewTutorNotifier(emit SSEEmitter) TutorNotifier {
	return &tutorNotifier{emit: emit}
}

func (n *tutorNotifier) SessionStarted(userID uuid.UUID, session *types.TutorSession) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventSessionStarted,
		Data:    map[string]any{"session": session},
	})
}

func (n *tutorNotifier) SessionClosed(userID uuid.UUID, session *types.TutorSession) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventSessionClosed,
		Data:    map[string]any{"session": session},
	})
}

func (n *tutorNotifier) MessageCreated(userID uuid.UUID, sessionID uuid.UUID, msg *types.TutorMessage) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventMessageCreated,
		Data:    map[string]any{"session_id": sessionID, "message": msg},
	})
}

func (n *tutorNotifier) MessageDelta(userID uuid.UUID, sessionID uuid.UUID, requestID string, delta string) {
	if n == nil || n.emit == nil || userID == uuid.Nil || delta == "" {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventMessageDelta,
		Data: map[string]any{
			"session_id": sessionID,
			"request_id": requestID,
			"text":       delta,
		},
	})
}

func (n *tutorNotifier) MessageDone(userID uuid.UUID, sessionID uuid.UUID, requestID string, msg *types.TutorMessage) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventMessageDone,
		Data: map[string]any{
			"session_id": sessionID,
			"request_id": requestID,
			"message":    msg,
		},
	})
}

func (n *tutorNotifier) MessageError(userID uuid.UUID, sessionID uuid.UUID, requestID string, errMsg string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventMessageError,
		Data: map[string]any{
			"session_id": sessionID,
			"request_id": requestID,
			"error":      errMsg,
		},
	})
}

func (n *tutorNotifier) ProgressUpdated(userID uuid.UUID, progress *types.TopicProgress) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventProgressUpdate,
		Data:    map[string]any{"progress": progress},
	})
}

func (n *tutorNotifier) ExamCompleted(userID uuid.UUID, attempt *types.ExamAttempt) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventExamCompleted,
		Data:    map[string]any{"attempt": attempt},
	})
}
