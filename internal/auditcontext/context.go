package auditcontext

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	ipAddressKey
	userAgentKey
	actorIDKey
	actorRoleKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return withString(ctx, ipAddressKey, ip)
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return withString(ctx, userAgentKey, ua)
}

// WithActor attaches the authenticated admin that performs the mutation.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = withString(ctx, actorIDKey, actorID)
	return withString(ctx, actorRoleKey, role)
}

func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

func IPAddressFromContext(ctx context.Context) string { return stringValue(ctx, ipAddressKey) }

func UserAgentFromContext(ctx context.Context) string { return stringValue(ctx, userAgentKey) }

func ActorIDFromContext(ctx context.Context) string { return stringValue(ctx, actorIDKey) }

func ActorRoleFromContext(ctx context.Context) string { return stringValue(ctx, actorRoleKey) }

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
