package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	first := SSEMessage{Channel: channel, Event: SSEEventMessageDelta, Data: map[string]any{"seq": 1}}
	second := SSEMessage{Channel: channel, Event: SSEEventMessageDelta, Data: map[string]any{"seq": 2}}
	hub.Broadcast(first)
	hub.Broadcast(second)

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Data.(map[string]any)["seq"] != 1 {
		t.Fatalf("first message out of order: got=%v", gotFirst.Data)
	}
	if gotSecond.Data.(map[string]any)["seq"] != 2 {
		t.Fatalf("second message out of order: got=%v", gotSecond.Data)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	reconnect := SSEMessage{Channel: channel, Event: SSEEventMessageDone, Data: map[string]any{"seq": 3}}
	hub.Broadcast(reconnect)
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != SSEEventMessageDone {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventMessageDone, gotReconnect.Event)
	}
}

func TestSSEHubChannelIsolation(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))

	mine := hub.NewSSEClient(uuid.New())
	theirs := hub.NewSSEClient(uuid.New())
	hub.AddChannel(mine, mine.UserID.String())
	hub.AddChannel(theirs, theirs.UserID.String())

	hub.Broadcast(SSEMessage{Channel: mine.UserID.String(), Event: SSEEventMessageCreated})

	got := recvMessage(t, mine.Outbound, time.Second)
	if got.Event != SSEEventMessageCreated {
		t.Fatalf("event: want=%s got=%s", SSEEventMessageCreated, got.Event)
	}
	select {
	case msg := <-theirs.Outbound:
		t.Fatalf("unexpected cross-channel delivery: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
