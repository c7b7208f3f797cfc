package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
)

// RequestLogger assigns each request an id (reusing an incoming
// X-Request-ID) and logs one event per request once the handler returns.
// Server errors are logged at error level, client errors at warn.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
    logger = logger.With().Str("component", "http").Logger()
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()
            id := req.Header.Get(echo.HeaderXRequestID)
            if id == "" {
                id = uuid.NewString()
            }
            c.Response().Header().Set(echo.HeaderXRequestID, id)

            err := next(c)
            if err != nil {
                // Let echo's error handler write the response so the status is known.
                c.Error(err)
            }

            status := c.Response().Status
            var ev *zerolog.Event
            switch {
            case status >= 500:
                ev = logger.Error().Err(err)
            case status >= 400:
                ev = logger.Warn()
            default:
                ev = logger.Info()
            }
            ev.Str("request_id", id).
                Str("method", req.Method).
                Str("path", req.URL.Path).
                Str("route", c.Path()).
                Int("status", status).
                Int64("bytes", c.Response().Size).
                Dur("latency", time.Since(start)).
                Str("user", UserID(c)).
                Msg("request")
            return nil
        }
    }
}
