package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/ecodeli/ecodeli/internal/config"
	obsmetrics "github.com/ecodeli/ecodeli/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPricingActor = "pricing:actor:%s"
	endpointPricing = "pricing"
)

// PricingLimiter throttles quote and checkout calls per actor. Without redis
// every call is allowed.
type PricingLimiter struct {
	bucket  *TokenBucket
	rate    float64
	burst   int
	log     *zap.Logger
	metrics *obsmetrics.RateLimitMetrics
}

func NewPricingLimiter(client redis.UniversalClient, cfg config.Config, log *zap.Logger, metrics *obsmetrics.RateLimitMetrics) *PricingLimiter {
	limiter := &PricingLimiter{
		rate:    cfg.PricingRateLimitRPS,
		burst:   cfg.PricingRateLimitBurst,
		log:     log.Named("ratelimit"),
		metrics: metrics,
	}
	if client != nil && limiter.rate > 0 && limiter.burst > 0 {
		limiter.bucket = NewTokenBucket(client)
	}
	return limiter
}

func (l *PricingLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowActor fails open: a redis outage must not block checkout.
func (l *PricingLimiter) AllowActor(ctx context.Context, actorID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Result{}, ErrEmptyKey
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPricingActor, actorID), l.rate, l.burst)
	if err != nil {
		l.log.Warn("ratelimit.pricing.unavailable", zap.String("actor_id", actorID), zap.Error(err))
		l.metrics.RecordAllowed(ctx, endpointPricing)
		return Result{Allowed: true}, nil
	}

	if res.Allowed {
		l.metrics.RecordAllowed(ctx, endpointPricing)
	} else {
		l.metrics.RecordDenied(ctx, endpointPricing, "bucket_empty")
	}
	return res, nil
}
