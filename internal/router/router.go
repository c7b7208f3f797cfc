package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/wedding-rsvp/internal/config"
	"github.com/iliyamo/wedding-rsvp/internal/handler"
	"github.com/iliyamo/wedding-rsvp/internal/middleware"
	"github.com/iliyamo/wedding-rsvp/internal/utils"
)

// RegisterRoutes registers the health checks and the Prometheus scrape
// endpoint.
// None of them require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the admin login and the token introspection
// endpoint. loginLimit guards POST /v1/auth/login only.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, loginLimit ...echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, loginLimit...)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
}

// GuestDeps carries what the guest routes need besides the handler.
// A nil Redis client turns both cache middlewares into passthroughs and
// leaves the write bucket to its in-process fallback.
type GuestDeps struct {
	JWTSecret string
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig // general config, writes use ForWrites
	Redis     *redis.Client
	Logger    zerolog.Logger
}

// RegisterGuests registers the guest resources. Reads are public; the
// collection listing goes through the response cache. Writes pass the
// write bucket, need an ADMIN token and purge the response cache once they
// succeed.
func RegisterGuests(e *echo.Echo, h *handler.GuestHandler, d GuestDeps) {
	writes := []echo.MiddlewareFunc{
		middleware.NewTokenBucket(d.RateLimit.ForWrites(), d.Redis),
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(utils.RoleAdmin),
		middleware.InvalidateCache(d.Cache, d.Redis, d.Logger),
	}

	// ---- Collection ----
	e.GET(handler.GuestsPath, h.ListGuests, middleware.NewRedisCache(d.Cache, d.Redis))
	e.POST(handler.GuestsPath, h.CreateGuest, writes...)

	// ---- Single guest ----
	e.GET(handler.GuestsPath+"/:id", h.GetGuest)
	e.PUT(handler.GuestsPath+"/:id", h.ReplaceGuest, writes...)
	e.DELETE(handler.GuestsPath+"/:id", h.DeleteGuest, writes...)
}
