package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/config"
)

// NewLimiter picks the backend from config: Redis when an address is set,
// process memory otherwise.
func NewLimiter(cfg config.RateLimitConfig) Limiter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisLimiter(client, "aingles")
	}
	return NewMemoryLimiter()
}

// Middleware limits requests per client IP and route. A backend failure
// fails open: the request proceeds and the error is logged.
func Middleware(limiter Limiter, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}
		key := c.FullPath() + ":" + c.ClientIP()
		result, errAllow := limiter.Allow(c.Request.Context(), key, limit, time.Now())
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit check failed")
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", result.Reset.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
