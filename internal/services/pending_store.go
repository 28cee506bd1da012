package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/anthropic"
)

const DefaultPendingStreamTTL = 120 * time.Second

// PendingStreamRequest is a queued streaming turn waiting for the client
// to attach. The prompt is assembled (and the student's question
// persisted) before the request is parked, so the bundle carries
// everything the model call needs. It expires unconsumed after its TTL
// and can be consumed at most once.
type PendingStreamRequest struct {
	RequestID string              `json:"request_id"`
	UserID    uuid.UUID           `json:"user_id"`
	SessionID uuid.UUID           `json:"session_id"`
	TopicID   string              `json:"topic_id"`
	Mode      string              `json:"mode"`
	Question  string              `json:"question"`
	System    string              `json:"system"`
	Messages  []anthropic.Message `json:"messages"`
	CreatedAt time.Time           `json:"created_at"`
}

type PendingStreamStore interface {
	Put(ctx context.Context, req PendingStreamRequest, ttl time.Duration) error
	// Consume removes and returns the pending request, or (nil, nil)
	// when it is absent, expired, or already consumed.
	Consume(ctx context.Context, userID uuid.UUID, requestID string) (*PendingStreamRequest, error)
}

func pendingKey(userID uuid.UUID, requestID string) string {
	return userID.String() + ":" + requestID
}

type memoryPendingEntry struct {
	req       PendingStreamRequest
	expiresAt time.Time
}

type memoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]memoryPendingEntry
}

func NewMemoryPendingStreamStore() PendingStreamStore {
	return &memoryPendingStore{entries: make(map[string]memoryPendingEntry)}
}

func (s *memoryPendingStore) Put(ctx context.Context, req PendingStreamRequest, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultPendingStreamTTL
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[pendingKey(req.UserID, req.RequestID)] = memoryPendingEntry{
		req:       req,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (s *memoryPendingStore) Consume(ctx context.Context, userID uuid.UUID, requestID string) (*PendingStreamRequest, error) {
	key := pendingKey(userID, requestID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	delete(s.entries, key)
	if time.Now().After(e.expiresAt) {
		return nil, nil
	}
	req := e.req
	return &req, nil
}

type redisPendingStore struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisPendingStreamStore keeps pending streams in redis so any
// replica can serve the attach. SET EX gives expire-after-write, GETDEL
// gives consume-once.
func NewRedisPendingStreamStore(rdb *goredis.Client) PendingStreamStore {
	return &redisPendingStore{rdb: rdb, prefix: "pending_stream:"}
}

func (s *redisPendingStore) Put(ctx context.Context, req PendingStreamRequest, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis pending stream store not initialized")
	}
	if ttl <= 0 {
		ttl = DefaultPendingStreamTTL
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+pendingKey(req.UserID, req.RequestID), raw, ttl).Err()
}

func (s *redisPendingStore) Consume(ctx context.Context, userID uuid.UUID, requestID string) (*PendingStreamRequest, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("redis pending stream store not initialized")
	}
	raw, err := s.rdb.GetDel(ctx, s.prefix+pendingKey(userID, requestID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var req PendingStreamRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, err
	}
	return &req, nil
}
