package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext reads upstream trace headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var blockedAttributeFragments = []string{"email", "phone", "address", "password", "token", "authorization"}

// SafeAttributes drops attributes whose key suggests personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		blocked := false
		for _, fragment := range blockedAttributeFragments {
			if strings.Contains(key, fragment) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, attr)
		}
	}
	return out
}

const maxErrorMessageLen = 256

// SafeError truncates an error message before it is attached to a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return errors.New(msg)
}
