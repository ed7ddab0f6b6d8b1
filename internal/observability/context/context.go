package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}

type actor struct {
	role string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor records who is calling, for log enrichment only.
func WithActor(ctx context.Context, role, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		role: strings.TrimSpace(role),
		id:   strings.TrimSpace(id),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.role, v.id
	}
	return "", ""
}
