package ratelimit

import (
	"context"
	"strings"

	"github.com/smallbiznis/invoicer/internal/config"
)

const authKeyPrefix = "invoicer:ratelimit:auth:"

// AuthLimiter throttles login and registration attempts per client address.
// A nil AuthLimiter allows everything.
type AuthLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewAuthLimiter(cfg config.Config, bucket *TokenBucket) *AuthLimiter {
	if bucket == nil || !cfg.RateLimit.Enabled() {
		return nil
	}
	return &AuthLimiter{
		bucket: bucket,
		rate:   cfg.RateLimit.AuthRate,
		burst:  cfg.RateLimit.AuthBurst,
	}
}

func (l *AuthLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *AuthLimiter) Allow(ctx context.Context, action, clientIP string) (RateLimitResult, error) {
	if !l.Enabled() {
		return RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, authKey(action, clientIP), l.rate, l.burst)
}

func authKey(action, clientIP string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		action = "default"
	}
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		clientIP = "unknown"
	}
	return authKeyPrefix + action + ":" + clientIP
}
