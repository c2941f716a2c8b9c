package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/event-reservation/internal/config"
)

// tokenBucketScript refills and takes one token atomically.  The bucket
// lives in a hash {tokens, last_refill_ms} that expires after ttl seconds
// of inactivity.  It returns {allowed, tokens_left, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key         = KEYS[1]
local now_ms      = tonumber(ARGV[1])
local capacity    = tonumber(ARGV[2])
local refill      = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl         = tonumber(ARGV[5])

local state  = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last   = tonumber(state[2])
if tokens == nil or last == nil then
    tokens = capacity
    last = now_ms
end

local steps = math.floor(math.max(0, now_ms - last) / interval_ms)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    last = last + steps * interval_ms
end

local allowed, wait = 0, 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.max(0, interval_ms - (now_ms - last))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last)
redis.call('EXPIRE', key, ttl)
return {allowed, tokens, wait}
`)

// bucketResult is the decoded reply of tokenBucketScript.
type bucketResult struct {
    allowed    bool
    remaining  int64
    retryAfter time.Duration
}

func parseBucketResult(v interface{}) (bucketResult, bool) {
    arr, ok := v.([]interface{})
    if !ok || len(arr) != 3 {
        return bucketResult{}, false
    }
    return bucketResult{
        allowed:    asInt64(arr[0]) == 1,
        remaining:  asInt64(arr[1]),
        retryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
    }, true
}

// NewTokenBucket limits requests per key with a token bucket kept in
// Redis.  Reservation creation gets its own, stricter bucket through
// RateLimitConfig.Reservations.  When Redis fails the request is let
// through; availability of bookings matters more than the limit.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = zap.NewNop()
    }
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    ttlSeconds := int64(math.Ceil(cfg.TTL.Seconds()))

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            reply, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(), ttlSeconds).Result()
            if err != nil {
                log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
                return next(c)
            }
            res, ok := parseBucketResult(reply)
            if !ok {
                log.Warn("unexpected rate limiter reply", zap.String("key", key), zap.Any("reply", reply))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if res.allowed {
                return next(c)
            }

            secs := int(math.Ceil(res.retryAfter.Seconds()))
            h.Set("Retry-After", strconv.Itoa(secs))
            log.Info("rate limited", zap.String("key", key), zap.Duration("retry_after", res.retryAfter))
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        n, _ := strconv.ParseInt(t, 10, 64)
        return n
    }
    return 0
}

// buildRateKey joins the parts selected by cfg.KeyStrategy:
// ip, user, route, ip_user, ip_route, user_route or ip_user_route (default).
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    route := c.Request().Method + " " + c.Path()

    strategy := strings.ToLower(cfg.KeyStrategy)
    switch strategy {
    case "ip", "user", "route", "ip_user", "ip_route", "user_route":
    default:
        strategy = "ip_user_route"
    }
    parts := []string{cfg.Prefix}
    for _, p := range strings.Split(strategy, "_") {
        switch p {
        case "ip":
            parts = append(parts, "ip", ip)
        case "user":
            parts = append(parts, "user", userID(c))
        case "route":
            parts = append(parts, "route", route)
        }
    }
    return strings.Join(parts, ":")
}
