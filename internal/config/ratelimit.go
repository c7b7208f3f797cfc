package config

import "time"

// RateLimitConfig describes one token bucket. The API runs two: a general
// bucket applied to every request and a stricter one in front of admin
// login and guest writes, so that RSVP form spam and password guessing
// are throttled well before read traffic is.
//
// Buckets are shared through Redis. When Redis is unavailable and
// LocalFallback is set, each process enforces the same bucket in memory.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // burst size
    RefillTokens   int           // tokens added per RefillInterval
    RefillInterval time.Duration
    TTL            time.Duration // idle bucket expiry, at least five refill intervals
    KeyStrategy    string        // ip, user, route, ip_route or ip_user_route
    Prefix         string
    LocalFallback  bool
    Debug          bool

    // Write bucket, see ForWrites.
    WriteCapacity       int
    WriteRefillInterval time.Duration
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables.
//
//  RATE_LIMIT_CAPACITY / RATE_LIMIT_BURST    general burst (60)
//  RATE_LIMIT_REFILL_EVERY                   one token per interval
//  RATE_LIMIT_WRITE_CAPACITY                 write/login burst (10)
//  RATE_LIMIT_WRITE_REFILL_EVERY             write/login refill (6s, ten per minute)
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:             envBool("RATE_LIMIT_ENABLED", true),
        Capacity:            envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:        envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval:      envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:                 envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:         envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:              envStr("RATE_LIMIT_PREFIX", "rsvp:rl"),
        LocalFallback:       envBool("RATE_LIMIT_LOCAL_FALLBACK", true),
        Debug:               envBool("RATE_LIMIT_DEBUG", false),
        WriteCapacity:       envInt("RATE_LIMIT_WRITE_CAPACITY", 10),
        WriteRefillInterval: envDur("RATE_LIMIT_WRITE_REFILL_EVERY", 6*time.Second),
    }
    if burst := envInt("RATE_LIMIT_BURST", 0); burst > 0 {
        cfg.Capacity = burst
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        cfg.RefillTokens = 1
        cfg.RefillInterval = every
    }
    return cfg.normalized()
}

// ForWrites derives the write/login bucket: one token per
// WriteRefillInterval, keyed by client address and route under its own
// prefix. It is applied before authentication, so the user is not part of
// the key.
func (c RateLimitConfig) ForWrites() RateLimitConfig {
    w := c
    w.Capacity = c.WriteCapacity
    w.RefillTokens = 1
    w.RefillInterval = c.WriteRefillInterval
    w.TTL = 0
    w.KeyStrategy = "ip_route"
    w.Prefix = c.Prefix + ":write"
    return w.normalized()
}

func (c RateLimitConfig) normalized() RateLimitConfig {
    c.Capacity = max(c.Capacity, 1)
    c.RefillTokens = max(c.RefillTokens, 1)
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    c.TTL = max(c.TTL, 5*c.RefillInterval)
    c.WriteCapacity = max(c.WriteCapacity, 1)
    if c.WriteRefillInterval <= 0 {
        c.WriteRefillInterval = c.RefillInterval
    }
    return c
}
