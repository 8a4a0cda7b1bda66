package ctxutil

import "context"

type traceKey struct{}

// TraceData correlates a request across logs, audit entries and spans.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td TraceData) context.Context {
	return context.WithValue(ctx, traceKey{}, td)
}

// GetTraceData returns the zero value when nothing was attached.
func GetTraceData(ctx context.Context) TraceData {
	td, _ := ctx.Value(traceKey{}).(TraceData)
	return td
}
