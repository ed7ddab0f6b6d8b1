package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/smallbiznis/storefront/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// routeEntityParams maps path parameters onto span attribute keys.
var routeEntityParams = map[string]string{
	"id":        "storefront.entity_id",
	"variantId": "storefront.variant_id",
}

// GinMiddleware opens a server span per request. Request and correlation ids
// travel as baggage; the actor role and route entity ids are span attributes.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("storefront/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))

		members := make([]baggage.Member, 0, 2)
		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				members = append(members, member)
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
			if member, err := baggage.NewMember("correlation_id", cid); err == nil {
				members = append(members, member)
			}
		}
		if len(members) > 0 {
			if bag, err := baggage.New(members...); err == nil {
				ctx = baggage.ContextWithBaggage(ctx, bag)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		}
		// The actor is set by admin middleware further down the chain.
		if role, _ := obscontext.ActorFromContext(c.Request.Context()); role != "" {
			attrs = append(attrs, attribute.String("storefront.actor_role", role))
		}
		for param, key := range routeEntityParams {
			if value := c.Param(param); value != "" {
				attrs = append(attrs, attribute.String(key, value))
			}
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}
