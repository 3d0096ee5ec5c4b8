package server

import (
	"context"
	"crypto/subtle"
	"math"
	"strconv"
	"strings"

	"github.com/ecodeli/ecodeli/internal/authorization"
	obscontext "github.com/ecodeli/ecodeli/internal/observability/context"
	"github.com/ecodeli/ecodeli/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	contextActorKey = "actor"
	bearerPrefix    = "Bearer "
)

// ActorRequired trusts the identity asserted by the upstream gateway.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		rawRole := strings.TrimSpace(c.GetHeader(HeaderActorRole))
		if id == "" || rawRole == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		role, err := authorization.ParseRole(rawRole)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := authorization.Actor{ID: id, Role: role}
		c.Set(contextActorKey, actor)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), string(role), id))
		c.Next()
	}
}

// CronAuthRequired guards scheduler triggers with the shared cron secret.
// An unset secret rejects every call.
func (s *Server) CronAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(s.cfg.CronSecret)
		header := c.GetHeader("Authorization")
		if secret == "" || !strings.HasPrefix(header, bearerPrefix) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "system", "cron"))
		c.Next()
	}
}

type pricingLimiter interface {
	AllowActor(ctx context.Context, actorID string) (ratelimit.Result, error)
}

func (s *Server) PricingRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.pricingLimiter == nil {
			c.Next()
			return
		}
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		res, err := s.pricingLimiter.AllowActor(c.Request.Context(), actor.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !res.Allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
