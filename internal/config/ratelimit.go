package config

import "time"

// RateLimitConfig describes one Redis token bucket.  Capacity tokens are
// available at once and RefillTokens are added every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool // adds X-RateLimit-* headers to every response
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  The bucket guards the
// credential endpoints under /v1/auth.
func LoadRateLimitConfig() RateLimitConfig {
    return RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    getenv("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         getenv("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }.normalized()
}

// Reservations derives the stricter bucket applied to reservation
// creation.  It is keyed per user so one account cannot drain an event
// from many addresses.
func (c RateLimitConfig) Reservations() RateLimitConfig {
    r := c
    r.Capacity = envInt("RATE_LIMIT_RESERVATION_CAPACITY", 10)
    r.RefillInterval = envDur("RATE_LIMIT_RESERVATION_REFILL_INTERVAL", 6*time.Second)
    r.RefillTokens = 1
    r.KeyStrategy = "user"
    r.Prefix = c.Prefix + ":reservations"
    return r.normalized()
}

func (c RateLimitConfig) normalized() RateLimitConfig {
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
        c.TTL = minTTL
    }
    return c
}
