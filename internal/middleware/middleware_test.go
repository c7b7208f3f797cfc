package middleware

import (
    "bytes"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/wedding-rsvp/internal/config"
    "github.com/iliyamo/wedding-rsvp/internal/utils"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, target, nil)
    for k, v := range hdr {
        req.Header.Set(k, v)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuthAndRole(t *testing.T) {
    e := echo.New()
    g := e.Group("/admin", JWTAuth("s3cret"), RequireRole(utils.RoleAdmin))
    g.GET("", func(c echo.Context) error { return c.String(http.StatusOK, UserID(c)+"/"+Role(c)) })

    rec := serve(e, http.MethodGet, "/admin", nil)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer nope"})
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    guest, err := utils.NewAccessToken("s3cret", "someone", "GUEST", 5)
    require.NoError(t, err)
    rec = serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer " + guest.Token})
    assert.Equal(t, http.StatusForbidden, rec.Code)

    admin, err := utils.NewAccessToken("s3cret", "admin", utils.RoleAdmin, 5)
    require.NoError(t, err)
    rec = serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer " + admin.Token})
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "admin/ADMIN", rec.Body.String())
}

func TestUserID_Anonymous(t *testing.T) {
    c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    assert.Equal(t, "anon", UserID(c))
    assert.Equal(t, "", Role(c))
}

// unreachableRedis returns a client whose every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
    rdb := redis.NewClient(&redis.Options{
        Addr:        "127.0.0.1:1",
        DialTimeout: 100 * time.Millisecond,
        MaxRetries:  -1,
    })
    t.Cleanup(func() { rdb.Close() })
    return rdb
}

func rateConfig() config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            5 * time.Hour,
        KeyStrategy:    "ip",
        Prefix:         "test:rl",
        LocalFallback:  true,
    }
}

func TestTokenBucket_LocalFallback(t *testing.T) {
    for name, rdb := range map[string]*redis.Client{
        "no redis":          nil,
        "redis unreachable": unreachableRedis(t),
    } {
        t.Run(name, func(t *testing.T) {
            e := echo.New()
            e.GET("/", okHandler, NewTokenBucket(rateConfig(), rdb))

            for i := 0; i < 2; i++ {
                rec := serve(e, http.MethodGet, "/", nil)
                require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
                assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
            }
            rec := serve(e, http.MethodGet, "/", nil)
            assert.Equal(t, http.StatusTooManyRequests, rec.Code)
            assert.NotEmpty(t, rec.Header().Get("Retry-After"))
            assert.Contains(t, rec.Body.String(), "too_many_requests")

            other := serve(e, http.MethodGet, "/", map[string]string{echo.HeaderXRealIP: "10.0.0.9"})
            assert.Equal(t, http.StatusOK, other.Code, "buckets are per key")
        })
    }
}

func TestTokenBucket_Disabled(t *testing.T) {
    cfg := rateConfig()
    cfg.LocalFallback = false
    e := echo.New()
    e.GET("/", okHandler, NewTokenBucket(cfg, nil))
    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/", nil).Code)
    }
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPut, "/v1/guests/3", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.1.1.1")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/guests/:id")
    c.Set(ctxUserID, "admin")

    cfg := rateConfig()
    cfg.KeyStrategy = "ip_user_route"
    assert.Equal(t, "test:rl:ip:10.1.1.1:user:admin:route:PUT /v1/guests/:id", buildRateKey(cfg, c))
    cfg.KeyStrategy = "user"
    assert.Equal(t, "test:rl:user:admin", buildRateKey(cfg, c))
}

func cacheConfig() config.CacheConfig {
    return config.CacheConfig{
        Enabled:     true,
        Methods:     map[string]bool{"GET": true},
        TTL:         time.Minute,
        KeyStrategy: "route_query_accept",
        Prefix:      "test:cache",
    }
}

func TestCacheKey_VariesByAcceptAndQuery(t *testing.T) {
    e := echo.New()
    key := func(target, accept string) string {
        req := httptest.NewRequest(http.MethodGet, target, nil)
        req.Header.Set(echo.HeaderAccept, accept)
        c := e.NewContext(req, httptest.NewRecorder())
        c.SetPath("/v1/guests")
        return cacheKeyFrom(cacheConfig(), c)
    }
    base := key("/v1/guests?skip=0&take=5", "application/json")
    assert.True(t, strings.HasPrefix(base, "test:cache:"))
    assert.Equal(t, base, key("/v1/guests?skip=0&take=5", "application/json"))
    assert.NotEqual(t, base, key("/v1/guests?skip=5&take=5", "application/json"))
    assert.NotEqual(t, base, key("/v1/guests?skip=0&take=5", "application/vnd.siren+json"))
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}, "Etag": {`"abc"`}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
    require.NoError(t, err)

    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, hdr, got)
    assert.Equal(t, `{"ok":true}`, string(body))

    _, _, _, ok = decodePayload(bs[:5])
    assert.False(t, ok)
    _, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
    assert.False(t, ok, "header length past the end")
}

func TestCache_DegradesWithoutRedis(t *testing.T) {
    e := echo.New()
    e.GET("/", okHandler, NewRedisCache(cacheConfig(), nil))
    e.POST("/", okHandler, InvalidateCache(cacheConfig(), nil, zerolog.Nop()))

    rec := serve(e, http.MethodGet, "/", nil)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Header().Get("X-Cache"))
    assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/", nil).Code)
}

func TestCache_RedisErrorsAreMisses(t *testing.T) {
    rdb := unreachableRedis(t)
    e := echo.New()
    e.GET("/", okHandler, NewRedisCache(cacheConfig(), rdb))

    rec := serve(e, http.MethodGet, "/", nil)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.Equal(t, "ok", rec.Body.String())
}

func TestCaptureWriter_Limit(t *testing.T) {
    rec := httptest.NewRecorder()
    cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
    _, _ = cw.Write([]byte("abc"))
    _, _ = cw.Write([]byte("defg"))
    assert.Equal(t, "abcd", cw.buf.String())
    assert.Equal(t, int64(7), cw.size)
    assert.Equal(t, "abcdefg", rec.Body.String(), "client always gets the full body")
}

func TestRequestLogger(t *testing.T) {
    var buf bytes.Buffer
    e := echo.New()
    e.Use(RequestLogger(zerolog.New(&buf)))
    e.GET("/ok", okHandler)
    e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") })

    rec := serve(e, http.MethodGet, "/ok", map[string]string{echo.HeaderXRequestID: "req-1"})
    assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
    assert.Contains(t, buf.String(), `"request_id":"req-1"`)
    assert.Contains(t, buf.String(), `"status":200`)

    buf.Reset()
    rec = serve(e, http.MethodGet, "/boom", nil)
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
    assert.Contains(t, buf.String(), `"level":"error"`)
}
