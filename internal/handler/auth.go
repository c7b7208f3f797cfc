package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/wedding-rsvp/internal/config"
	"github.com/iliyamo/wedding-rsvp/internal/middleware"
	"github.com/iliyamo/wedding-rsvp/internal/utils"
)

// AuthHandler issues access tokens to the RSVP administrator.
type AuthHandler struct {
	Cfg    config.Config
	logger zerolog.Logger
}

func NewAuthHandler(cfg config.Config, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, logger: logger.With().Str("component", "auth").Logger()}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User   string    `json:"user"`
	Role   string    `json:"role"`
	Access tokenPart `json:"access"`
}

// Login: verify the admin credentials and return an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}
	if h.Cfg.AdminUser == "" || h.Cfg.AdminPasswordHash == "" {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "admin login disabled"})
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Cfg.AdminUser)) == 1
	passOK := utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password)
	if !userOK || !passOK {
		h.logger.Warn().Str("user", req.Username).Str("ip", c.RealIP()).Msg("login rejected")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, h.Cfg.AdminUser, utils.RoleAdmin, h.Cfg.AccessTTLMin)
	if err != nil {
		h.logger.Error().Err(err).Msg("issue access token")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		User:   h.Cfg.AdminUser,
		Role:   utils.RoleAdmin,
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user": middleware.UserID(c),
		"role": middleware.Role(c),
	})
}
