package bus

import (
	"context"

	"github.com/HaiderAli3D/LOKI-AI/internal/realtime"
)

// Bus fans SSE messages out across processes; with a single instance the
// in-process hub alone is enough and no Bus is constructed.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
