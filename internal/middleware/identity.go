package middleware

// identity.go holds the context keys JWTAuth fills in and the helpers that
// read them back.

import "github.com/labstack/echo/v4"

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// UserID returns the authenticated subject, or "anon" when the request
// carries no valid token.
func UserID(c echo.Context) string {
    if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
        return s
    }
    return "anon"
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
    s, _ := c.Get(ctxRole).(string)
    return s
}
