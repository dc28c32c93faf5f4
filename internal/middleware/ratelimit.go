package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/eventix-booking/internal/config"
)

// tokenBucketScript refills and takes one token atomically.
//
//	KEYS[1]  bucket key
//	ARGV     now_ms, capacity, refill_tokens, interval_ms, ttl_s
//
// It returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local now, cap, per, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
	local b = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
	local left, stamp = tonumber(b[1]), tonumber(b[2])
	if not left or not stamp then
		left, stamp = cap, now
	end
	if every > 0 and per > 0 and now > stamp then
		local n = math.floor((now - stamp) / every)
		if n > 0 then
			left = math.min(cap, left + n * per)
			stamp = stamp + n * every
		end
	end
	local ok, wait = 1, 0
	if left < 1 then
		ok, wait = 0, math.max(0, every - (now - stamp))
	else
		left = left - 1
	end
	redis.call('HSET', KEYS[1], 'tokens', left, 'last_refill_ms', stamp)
	redis.call('EXPIRE', KEYS[1], ttl)
	return { ok, left, wait }
`)

// RateLimiter is a Redis token bucket shared by every instance of the
// service.  When Redis fails the request is let through.
type RateLimiter struct {
	cfg    config.RateLimitConfig
	rdb    redis.Scripter
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewRateLimiter returns a limiter.  A nil rdb or a disabled config gives
// a limiter whose middleware passes everything.
func NewRateLimiter(cfg config.RateLimitConfig, rdb redis.Scripter, logger logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{cfg: cfg, rdb: rdb, logger: logger, now: time.Now}
}

// verdict is the script result.
type verdict struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// take consumes one token from the bucket at key.
func (r *RateLimiter) take(ctx context.Context, key string) (verdict, error) {
	args := []interface{}{
		r.now().UnixMilli(),
		r.cfg.Capacity,
		r.cfg.RefillTokens,
		r.cfg.RefillInterval.Milliseconds(),
		int64(r.cfg.TTL / time.Second),
	}
	vals, err := tokenBucketScript.Run(ctx, r.rdb, []string{key}, args...).Int64Slice()
	if err != nil {
		return verdict{}, err
	}
	if len(vals) != 3 {
		return verdict{}, fmt.Errorf("unexpected script result %v", vals)
	}
	return verdict{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Middleware applies the bucket to each request.
func (r *RateLimiter) Middleware() echo.MiddlewareFunc {
	if !r.cfg.Enabled || r.rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := r.key(c)
			v, err := r.take(c.Request().Context(), key)
			if err != nil {
				r.logger.WithError(err).WithField("key", key).Warn("ratelimit: redis unavailable, passing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(r.cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
			if v.allowed {
				return next(c)
			}

			secs := int(math.Ceil(v.retry.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			r.logger.WithFields(logrus.Fields{"key": key, "retry_after": secs}).Debug("ratelimit: blocked")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func (r *RateLimiter) key(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := userKey(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{r.cfg.Prefix}
	switch strings.ToLower(r.cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
