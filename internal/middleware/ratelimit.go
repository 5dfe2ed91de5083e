package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimit is a fixed-window limiter keyed by client IP and shared through
// Redis. When Redis is unavailable requests are let through.
func RateLimit(client redis.UniversalClient, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, ttl, err := hit(c.Request.Context(), client, "ratelimit:"+c.ClientIP(), window)
		if err != nil {
			log.Warn().Err(err).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("RateLimit-Limit", strconv.Itoa(limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if int(count) > limit {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "Too many requests, please try again later"})
			return
		}

		c.Next()
	}
}

// hit counts one request. INCR and TTL run in one transaction. Any key found
// without expiry, new or left behind by a failed EXPIRE, gets the window.
func hit(ctx context.Context, client redis.UniversalClient, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	}); err != nil {
		return 0, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
		remaining = window
	}
	return incr.Val(), remaining, nil
}
