package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lab-booking/internal/config"
)

// takeScript refills the bucket for the elapsed whole intervals, then takes
// cost tokens if that many are left.  Returns {allowed, remaining, wait_ms}.
var takeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local every = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])
local cost = tonumber(ARGV[6])

local s = redis.call('HMGET', KEYS[1], 'tokens', 'stamp')
local tokens = tonumber(s[1]) or capacity
local stamp = tonumber(s[2]) or now

local steps = math.floor(math.max(0, now - stamp) / every)
if steps > 0 then
	tokens = math.min(capacity, tokens + steps * refill)
	stamp = stamp + steps * every
end

local ok, wait = 0, 0
if tokens >= cost then
	ok = 1
	tokens = tokens - cost
else
	local short = math.ceil((cost - tokens) / refill)
	wait = math.max(0, short * every - (now - stamp))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'stamp', stamp)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

type takeResult struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

type bucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	now func() time.Time
}

func (b *bucket) take(ctx context.Context, key string, cost int) (takeResult, error) {
	vals, err := takeScript.Run(ctx, b.rdb, []string{key},
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
		cost,
	).Int64Slice()
	if err != nil {
		return takeResult{}, err
	}
	if len(vals) != 3 {
		return takeResult{}, fmt.Errorf("ratelimit: unexpected script result %v", vals)
	}
	return takeResult{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		wait:      time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests with a Redis token bucket keyed by caller.
// Mutating requests take cfg.WriteCost tokens.  It is a no-op when disabled
// or without Redis, and fails open on Redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	return newTokenBucket(cfg, rdb, time.Now)
}

func newTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, now func() time.Time) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := &bucket{cfg: cfg, rdb: rdb, now: now}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			res, err := b.take(c.Request().Context(), key, requestCost(cfg, c.Request().Method))
			if err != nil {
				c.Logger().Warnf("ratelimit: %s: %v", key, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if res.allowed {
				return next(c)
			}
			secs := int((res.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":      "rate limit exceeded",
				"retryAfter": secs,
			})
		}
	}
}

func requestCost(cfg config.RateLimitConfig, method string) int {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return 1
	}
	if cfg.WriteCost > cfg.Capacity {
		return cfg.Capacity
	}
	return cfg.WriteCost
}

// rateKey builds prefix:<strategy parts>.  Unknown strategies key on the
// user, which is always known behind the bearer middleware.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user_route":
		parts = append(parts, "user", rateIdentity(c), "route", c.Request().Method+" "+c.Path())
	case "ip_user":
		parts = append(parts, "ip", ip, "user", rateIdentity(c))
	default:
		parts = append(parts, "user", rateIdentity(c))
	}
	return strings.Join(parts, ":")
}
