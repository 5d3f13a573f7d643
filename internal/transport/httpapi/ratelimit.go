package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// RetryAfter is the hint sent with a rejected request.
	RetryAfter() time.Duration
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter is a fixed-window limiter shared by every instance using the same Redis.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int64
	window time.Duration
	prefix string
}

func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "agenda:rl"
	}
	return &RedisLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.incr(ctx, l.prefix+":"+key)
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}

func (l *RedisLimiter) RetryAfter() time.Duration { return l.window }

func (l *RedisLimiter) incr(ctx context.Context, key string) (int64, error) {
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}

// DefaultLimiterIdleTTL is how long an unused per-key bucket survives a sweep.
const DefaultLimiterIdleTTL = 10 * time.Minute

// LocalLimiter keeps one token bucket per key in process memory. Buckets idle
// for longer than the idle TTL are dropped by Sweep.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localBucket
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type localBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &LocalLimiter{
		limiters: make(map[string]*localBucket),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  DefaultLimiterIdleTTL,
		now:      time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	l.mu.Lock()
	b, ok := l.limiters[key]
	if !ok {
		b = &localBucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1), nil
}

// Sweep drops buckets not used since now minus the idle TTL and returns how many were removed.
func (l *LocalLimiter) Sweep(now time.Time) int {
	cutoff := now.Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.limiters {
		if b.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *LocalLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(l.now())
		}
	}
}

func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *LocalLimiter) RetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / float64(l.rps))
}

// RateLimit rejects callers over their budget with 429. Authenticated callers
// are keyed by subject, anonymous ones by client IP. Limiter failures let the
// request through.
func RateLimit(l Limiter, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if a, ok := actorFrom(c); ok {
				key = "sub:" + a.Subject
			}
			allowed, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
				return next(c)
			}
			if !allowed {
				secs := int(l.RetryAfter().Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
