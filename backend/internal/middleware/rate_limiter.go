package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client-IP token bucket held in process memory.
// Idle visitors are swept on access, so no background goroutine is needed.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	var (
		visitors  = make(map[string]*visitor)
		lastSweep = time.Now()
		mu        sync.Mutex
	)

	getVisitor := func(ip string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if now.Sub(lastSweep) > visitorIdleTTL {
			for key, v := range visitors {
				if now.Sub(v.lastSeen) > visitorIdleTTL {
					delete(visitors, key)
				}
			}
			lastSweep = now
		}

		v, exists := visitors[ip]
		if !exists {
			v = &visitor{limiter: rate.NewLimiter(r, b)}
			visitors[ip] = v
		}
		v.lastSeen = now
		return v.limiter
	}

	return func(c *gin.Context) {
		limiter := getVisitor(c.ClientIP(), time.Now())
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// DistributedRateLimiter keeps a sliding window per key in a redis sorted
// set, so every replica shares the same budget.
type DistributedRateLimiter struct {
	redis  *redis.Client
	logger *zap.Logger
	mu     sync.RWMutex
	limits map[string]*RateLimit
}

type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
	OnLimit func(*gin.Context)
}

func NewDistributedRateLimiter(redisClient *redis.Client, logger *zap.Logger) *DistributedRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		logger: logger,
		limits: make(map[string]*RateLimit),
	}
}

// CreateMiddleware fails open: when redis is unreachable the request is
// served and marked with X-RateLimit-Error.
func (rl *DistributedRateLimiter) CreateMiddleware(name string, limit *RateLimit) gin.HandlerFunc {
	rl.mu.Lock()
	rl.limits[name] = limit
	rl.mu.Unlock()

	keyFunc := limit.KeyFunc
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, keyFunc(c))

		count, err := rl.checkLimit(c, key, limit)
		if err != nil {
			rl.logger.Warn("⚠️  distributed rate limit unavailable", zap.String("key", key), zap.Error(err))
			c.Header("X-RateLimit-Error", "true")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
		if count >= int64(limit.Rate) {
			if limit.OnLimit != nil {
				limit.OnLimit(c)
				c.Abort()
				return
			}

			c.Header("X-RateLimit-Window", limit.Window.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": limit.Window.Seconds(),
			})
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(limit.Rate)-count-1, 10))
		c.Next()
	}
}

// checkLimit records the request and returns how many requests preceded it
// inside the window.
func (rl *DistributedRateLimiter) checkLimit(c *gin.Context, key string, limit *RateLimit) (int64, error) {
	ctx := c.Request.Context()

	now := time.Now().UnixNano()
	windowStart := now - limit.Window.Nanoseconds()

	// Unique member: two requests in the same nanosecond must both count.
	member, err := uuid.NewV4()
	if err != nil {
		return 0, fmt.Errorf("failed to generate rate limit member: %w", err)
	}

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: member.String()})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	return countCmd.Val(), nil
}

func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}
