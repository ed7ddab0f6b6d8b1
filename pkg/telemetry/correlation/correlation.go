package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type correlationKey struct{}

// HeaderName carries the correlation id in and out of the HTTP API.
const HeaderName = "X-Correlation-Id"

const maxIDLength = 64

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID stores id on ctx. Client supplied ids that are
// too long or carry characters outside [A-Za-z0-9_.:-] are ignored.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if !valid(id) {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating
// a ULID when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if cid := ExtractCorrelationID(ctx); cid != "" {
		return ctx, cid
	}
	cid := ulid.Make().String()
	return context.WithValue(ctx, correlationKey{}, cid), cid
}

func valid(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
