package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Header carries the trace id across HTTP hops and MQ messages.
const Header = "X-Trace-ID"

func GenerateTraceID() string {
	return uuid.NewString()
}

func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// Ensure returns ctx with a trace id, generating one if absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := GenerateTraceID()
	return WithContext(ctx, id), id
}
