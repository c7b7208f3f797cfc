package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wedding-rsvp/internal/config"
	"github.com/iliyamo/wedding-rsvp/internal/handler"
	"github.com/iliyamo/wedding-rsvp/internal/metadata"
	"github.com/iliyamo/wedding-rsvp/internal/middleware"
	"github.com/iliyamo/wedding-rsvp/internal/model"
	"github.com/iliyamo/wedding-rsvp/internal/repository"
	"github.com/iliyamo/wedding-rsvp/internal/service"
	"github.com/iliyamo/wedding-rsvp/internal/utils"
)

const secret = "router-secret"

type oneGuest struct{ g *model.Guest }

func (s *oneGuest) GetGuest(_ context.Context, id uint64) (model.Guest, error) {
	if s.g == nil || s.g.ID != id {
		return model.Guest{}, &repository.NotFoundError{ID: id}
	}
	return *s.g, nil
}
func (s *oneGuest) SearchGuests(context.Context, *model.GuestSearchQuery) (service.GuestPage, error) {
	if s.g == nil {
		return service.GuestPage{}, nil
	}
	return service.GuestPage{Guests: []model.Guest{*s.g}, Total: 1}, nil
}
func (s *oneGuest) InsertGuest(_ context.Context, g model.Guest) (model.Guest, error) {
	g.ID = 1
	s.g = &g
	return g, nil
}
func (s *oneGuest) ReplaceGuest(_ context.Context, g model.Guest, precondition func(model.Guest) error) error {
	if s.g == nil || s.g.ID != g.ID {
		return &repository.NotFoundError{ID: g.ID}
	}
	if precondition != nil {
		if err := precondition(*s.g); err != nil {
			return err
		}
	}
	s.g = &g
	return nil
}
func (s *oneGuest) DeleteGuest(_ context.Context, id uint64) error {
	if s.g == nil || s.g.ID != id {
		return &repository.NotFoundError{ID: id}
	}
	s.g = nil
	return nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	return newLimitedServer(t, config.RateLimitConfig{})
}

func newLimitedServer(t *testing.T, limits config.RateLimitConfig) *echo.Echo {
	t.Helper()
	e := echo.New()
	RegisterRoutes(e, okPinger{})
	RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: secret}, zerolog.Nop()), secret,
		middleware.NewTokenBucket(limits.ForWrites(), nil))
	h := handler.NewGuestHandler(&oneGuest{}, metadata.NewMemoryStore(), zerolog.Nop())
	RegisterGuests(e, h, GuestDeps{
		JWTSecret: secret,
		Cache:     config.CacheConfig{Enabled: true},
		RateLimit: limits,
		Logger:    zerolog.Nop(),
	})
	return e
}

func call(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "host", role, 5)
	require.NoError(t, err)
	return tok.Token
}

func TestHealthChecksAndMetrics(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/readyz", "", "").Code)

	rec := call(e, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resource_metadata_entries")
}

func TestGuestWritesRequireAdmin(t *testing.T) {
	e := newServer(t)
	body := `{"givenName":"Ada","surName":"Lovelace"}`

	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodPost, "/v1/guests", body, "").Code)
	assert.Equal(t, http.StatusForbidden, call(e, http.MethodPost, "/v1/guests", body, token(t, "GUEST")).Code)

	admin := token(t, utils.RoleAdmin)
	rec := call(e, http.MethodPost, "/v1/guests", body, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodPut, "/v1/guests/1", body, "").Code)
	assert.Equal(t, http.StatusNoContent, call(e, http.MethodPut, "/v1/guests/1", body, admin).Code)
	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodDelete, "/v1/guests/1", "", "").Code)
}

func TestGuestReadsArePublic(t *testing.T) {
	e := newServer(t)
	admin := token(t, utils.RoleAdmin)
	require.Equal(t, http.StatusCreated,
		call(e, http.MethodPost, "/v1/guests", `{"givenName":"Ada","surName":"Lovelace"}`, admin).Code)

	rec := call(e, http.MethodGet, "/v1/guests", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lovelace")

	rec = call(e, http.MethodGet, "/v1/guests/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	assert.Equal(t, http.StatusNoContent, call(e, http.MethodDelete, "/v1/guests/1", "", admin).Code)
	assert.Equal(t, http.StatusNotFound, call(e, http.MethodGet, "/v1/guests/1", "", "").Code)
}

func TestMeEndpoint(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodGet, "/v1/me", "", "").Code)
	rec := call(e, http.MethodGet, "/v1/me", "", token(t, utils.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user":"host"`)
}

func TestWriteBucket(t *testing.T) {
	e := newLimitedServer(t, config.RateLimitConfig{
		Enabled:             true,
		Capacity:            100,
		LocalFallback:       true,
		WriteCapacity:       2,
		WriteRefillInterval: time.Hour,
	})
	admin := token(t, utils.RoleAdmin)
	body := `{"givenName":"Ada","surName":"Lovelace"}`

	require.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/v1/guests", body, admin).Code)
	// Rejected requests still spend a token.
	require.Equal(t, http.StatusUnauthorized, call(e, http.MethodPost, "/v1/guests", body, "").Code)
	rec := call(e, http.MethodPost, "/v1/guests", body, admin)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Buckets are per route, and reads are not limited by it.
	assert.Equal(t, http.StatusNoContent, call(e, http.MethodPut, "/v1/guests/1", body, admin).Code)
	for range 5 {
		assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/v1/guests/1", "", "").Code)
	}

	login := `{"username":"host","password":"wrong"}`
	assert.Equal(t, http.StatusServiceUnavailable, call(e, http.MethodPost, "/v1/auth/login", login, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, call(e, http.MethodPost, "/v1/auth/login", login, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, call(e, http.MethodPost, "/v1/auth/login", login, "").Code)
}
