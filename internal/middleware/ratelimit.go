package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "github.com/iliyamo/wedding-rsvp/internal/config"
)

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// decision is the outcome of one bucket check.
type decision struct {
    allowed   bool
    remaining int64
    retryMs   int64
}

// localLimiter enforces the same bucket per key inside this process. It
// is used when Redis is not configured or a script call fails.
type localLimiter struct {
    mu       sync.Mutex
    limiters map[string]*localEntry
    limit    rate.Limit
    burst    int
    ttl      time.Duration
    lastGC   time.Time
}

type localEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

func newLocalLimiter(cfg config.RateLimitConfig) *localLimiter {
    return &localLimiter{
        limiters: make(map[string]*localEntry),
        limit:    rate.Limit(float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()),
        burst:    cfg.Capacity,
        ttl:      cfg.TTL,
    }
}

func (l *localLimiter) allow(key string, now time.Time) decision {
    l.mu.Lock()
    defer l.mu.Unlock()
    if now.Sub(l.lastGC) > l.ttl {
        for k, e := range l.limiters {
            if now.Sub(e.seen) > l.ttl {
                delete(l.limiters, k)
            }
        }
        l.lastGC = now
    }
    e, ok := l.limiters[key]
    if !ok {
        e = &localEntry{lim: rate.NewLimiter(l.limit, l.burst)}
        l.limiters[key] = e
    }
    e.seen = now
    if e.lim.AllowN(now, 1) {
        return decision{allowed: true, remaining: int64(e.lim.TokensAt(now))}
    }
    r := e.lim.ReserveN(now, 1)
    delay := r.DelayFrom(now)
    r.CancelAt(now)
    return decision{retryMs: delay.Milliseconds()}
}

// NewTokenBucket rate limits requests with a token bucket per key (see
// buildRateKey). Buckets live in Redis so every instance shares them;
// without Redis, or when a script call fails, the in-process fallback
// applies if cfg.LocalFallback is set, otherwise the request is let through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return passthrough
    }
    var local *localLimiter
    if cfg.LocalFallback {
        local = newLocalLimiter(cfg)
    }
    if rdb == nil && local == nil {
        return passthrough
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            now := time.Now()

            d, ok := redisDecision(c, cfg, rdb, key, now)
            if !ok {
                if local == nil {
                    return next(c)
                }
                d = local.allow(key, now)
            }

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
            if !d.allowed {
                secs := int(math.Ceil(float64(d.retryMs) / 1000.0))
                if secs < 0 { secs = 0 }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    c.Logger().Infof("[ratelimit] block key=%s retry=%dms", key, d.retryMs)
                }
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

func redisDecision(c echo.Context, cfg config.RateLimitConfig, rdb *redis.Client, key string, now time.Time) (decision, bool) {
    if rdb == nil {
        return decision{}, false
    }
    args := []any{
        now.UnixMilli(),
        cfg.Capacity,
        cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(),
        int64(cfg.TTL / time.Second),
    }
    vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
    if err != nil {
        if cfg.Debug {
            c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
        }
        return decision{}, false
    }
    arr, ok := vals.([]any)
    if !ok || len(arr) != 3 {
        return decision{}, false
    }
    return decision{
        allowed:   fmt.Sprint(arr[0]) == "1",
        remaining: asInt64(arr[1]),
        retryMs:   asInt64(arr[2]),
    }, true
}

func asInt64(v any) int64 {
    switch t := v.(type) {
    case int64: return t
    case int32: return int64(t)
    case int: return int64(t)
    case float64: return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil { return n }
    }
    return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    ip := c.RealIP()
    if ip == "" { ip = "unknown" }
    uid := UserID(c)
    route := c.Request().Method + " " + c.Path()

    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
