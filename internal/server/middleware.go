package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/auditcontext"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderActorID        = "X-Actor-Id"
	HeaderActorRole      = "X-Actor-Role"
	HeaderIdempotencyKey = "Idempotency-Key"

	contextActorIDKey   = "actor_id"
	contextActorRoleKey = "actor_role"
)

// ActorRequired trusts the actor headers set by the authentication proxy in
// front of the admin surface and carries them into the request context.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		if actorID == "" || role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := auditcontext.WithActor(c.Request.Context(), actorID, role)
		ctx = obscontext.WithActor(ctx, role, actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorIDKey, actorID)
		c.Set(contextActorRoleKey, role)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		actorID := c.GetString(contextActorIDKey)
		role := c.GetString(contextActorRoleKey)
		if actorID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actorID, role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// CheckoutRateLimit applies the per-client token bucket to order placement.
// Without Redis the guard is nil and requests pass through.
func (s *Server) CheckoutRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.guard == nil || !s.guard.RateLimited() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.guard.AllowClient(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("checkout rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if result == nil || result.Allowed {
			c.Next()
			return
		}

		for name, value := range result.Headers() {
			c.Header(name, value)
		}
		AbortWithError(c, ErrRateLimited)
	}
}
