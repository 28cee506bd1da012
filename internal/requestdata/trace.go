package requestdata

import "context"

type traceKey struct{}

// TraceData carries the request/trace ids attached by the trace
// middleware for log correlation.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceKey{}).(*TraceData); ok {
		return td
	}
	return nil
}
