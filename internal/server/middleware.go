package server

import (
	"crypto/subtle"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/invoicer/internal/observability/context"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"go.uber.org/zap"
)

const (
	cronSecretHeader = "X-Cron-Secret"
	bearerPrefix     = "bearer "
)

// AuthRequired resolves the bearer token to the owning user and scopes the request context to it.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, _, err := s.tokens.Parse(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), userID)
		ctx = obscontext.WithUserID(ctx, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// CronSecretRequired is a no-op when no secret is configured.
func (s *Server) CronSecretRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.cfg.CronSecret
		if secret == "" {
			c.Next()
			return
		}
		provided := strings.TrimSpace(c.GetHeader(cronSecretHeader))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) AuthRateLimit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authLimiter.Enabled() {
			c.Next()
			return
		}

		result, err := s.authLimiter.Allow(c.Request.Context(), action, c.ClientIP())
		if err != nil {
			// Redis trouble must not lock users out.
			s.log.Warn("auth rate limit unavailable", zap.String("action", action), zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			seconds := int(math.Ceil(result.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
