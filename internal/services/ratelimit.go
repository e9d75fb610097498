package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/utils"
)

// RateLimiter bounds generation calls per user. Allow reports whether one
// more call fits inside the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NewRateLimiter returns a Redis fixed-window limiter when REDIS_ADDR is
// set and reachable, otherwise an in-process limiter. Single-node deploys
// work without Redis; the in-process fallback only loses cross-instance
// accounting.
func NewRateLimiter(log *logger.Logger) RateLimiter {
	limit := utils.GetEnvAsInt("GENERATION_RATE_LIMIT", 20, log)
	window := time.Duration(utils.GetEnvAsInt("GENERATION_RATE_WINDOW_SECONDS", 60, log)) * time.Second

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, using in-process rate limiter", "addr", addr, "error", err)
		} else {
			return &redisRateLimiter{
				log:    log.With("service", "RedisRateLimiter"),
				rdb:    rdb,
				limit:  limit,
				window: window,
			}
		}
	}
	return &memoryRateLimiter{
		limit:   limit,
		window:  window,
		windows: map[string]*memoryWindow{},
	}
}

type redisRateLimiter struct {
	log    *logger.Logger
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().Unix() / int64(l.window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.log.Warn("Failed to set rate limit key expiry", "key", redisKey, "error", err)
		}
	}
	return count <= int64(l.limit), nil
}

type memoryWindow struct {
	bucket int64
	count  int
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*memoryWindow
}

func (l *memoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().Unix() / int64(l.window.Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.bucket != bucket {
		w = &memoryWindow{bucket: bucket}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}
