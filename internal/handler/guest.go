package handler

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/wedding-rsvp/internal/hypermedia"
    "github.com/iliyamo/wedding-rsvp/internal/metadata"
    "github.com/iliyamo/wedding-rsvp/internal/model"
    "github.com/iliyamo/wedding-rsvp/internal/pagination"
    "github.com/iliyamo/wedding-rsvp/internal/repository"
    "github.com/iliyamo/wedding-rsvp/internal/service"
)

// GuestsPath is the collection address; a guest lives at GuestsPath/{id}.
const GuestsPath = "/v1/guests"

// GuestService is the subset of service.GuestService the handler uses.
type GuestService interface {
    GetGuest(ctx context.Context, id uint64) (model.Guest, error)
    SearchGuests(ctx context.Context, q *model.GuestSearchQuery) (service.GuestPage, error)
    InsertGuest(ctx context.Context, g model.Guest) (model.Guest, error)
    ReplaceGuest(ctx context.Context, g model.Guest, precondition func(current model.Guest) error) error
    DeleteGuest(ctx context.Context, id uint64) error
}

// GuestHandler serves the guest resources and keeps their entries in the
// resource metadata cache current.
type GuestHandler struct {
    svc      GuestService
    meta     *metadata.MemoryStore
    validate *validator.Validate
    logger   zerolog.Logger
    now      func() time.Time
}

func NewGuestHandler(svc GuestService, meta *metadata.MemoryStore, logger zerolog.Logger) *GuestHandler {
    return &GuestHandler{
        svc:      svc,
        meta:     meta,
        validate: validator.New(validator.WithRequiredStructEnabled()),
        logger:   logger.With().Str("component", "guest-handler").Logger(),
        now:      time.Now,
    }
}

// ----- DTOs -----

type reservationReq struct {
    IsAttending       *bool      `json:"isAttending" validate:"required"`
    SubmittedDateTime *time.Time `json:"submittedDateTime"`
}

type guestReq struct {
    GivenName           string          `json:"givenName" validate:"required,max=100"`
    Surname             string          `json:"surName" validate:"required,max=100"`
    Description         string          `json:"description" validate:"max=1000"`
    InviteCode          string          `json:"inviteCode" validate:"omitempty,max=64"`
    DietaryRestrictions string          `json:"dietaryRestrictions" validate:"max=1000"`
    Reservation         *reservationReq `json:"reservation" validate:"omitnil"`
}

func (r guestReq) toModel(id uint64) model.Guest {
    g := model.Guest{
        ID:                  id,
        GivenName:           strings.TrimSpace(r.GivenName),
        Surname:             strings.TrimSpace(r.Surname),
        Description:         r.Description,
        InviteCode:          strings.TrimSpace(r.InviteCode),
        DietaryRestrictions: r.DietaryRestrictions,
    }
    if r.Reservation != nil && r.Reservation.IsAttending != nil {
        g.Reservation = &model.Reservation{IsAttending: *r.Reservation.IsAttending}
        if r.Reservation.SubmittedDateTime != nil {
            g.Reservation.SubmittedAt = r.Reservation.SubmittedDateTime.UTC()
        }
    }
    return g
}

type guestListResp struct {
    Guests []model.Guest `json:"guests"`
    Total  int           `json:"total"`
    Skip   *int          `json:"skip,omitempty"`
    Take   *int          `json:"take,omitempty"`
}

// ListGuests handles GET /v1/guests. Optional filters: givenName, surName,
// inviteCode (exact match), skip and take.
func (h *GuestHandler) ListGuests(c echo.Context) error {
    qp := c.QueryParams()
    skip, err := optionalInt(qp, pagination.SkipParam)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid skip"})
    }
    take, err := optionalInt(qp, pagination.TakeParam)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid take"})
    }
    q, err := model.NewGuestSearchQuery(
        optionalString(qp, "givenName"), optionalString(qp, "surName"), optionalString(qp, "inviteCode"), skip, take)
    if err != nil {
        return h.fail(c, err)
    }

    page, err := h.svc.SearchGuests(c.Request().Context(), q)
    if err != nil {
        return h.fail(c, err)
    }
    if page.Guests == nil {
        page.Guests = []model.Guest{}
    }
    if wantsSiren(c) {
        return siren(c, http.StatusOK, hypermedia.GuestCollectionEntity(page.Guests, requestURL(c), skip, take, page.Total))
    }
    return c.JSON(http.StatusOK, guestListResp{Guests: page.Guests, Total: page.Total, Skip: skip, Take: take})
}

// CreateGuest handles POST /v1/guests: 201 with Location and the stored guest.
func (h *GuestHandler) CreateGuest(c echo.Context) error {
    var req guestReq
    if err := h.bind(c, &req); err != nil {
        return err
    }
    ctx := c.Request().Context()
    created, err := h.svc.InsertGuest(ctx, req.toModel(0))
    if err != nil {
        return h.fail(c, err)
    }

    location := guestPath(created.ID)
    // Re-read so the tag matches what GET will compute from the stored row.
    if stored, err := h.svc.GetGuest(ctx, created.ID); err == nil {
        created = stored
        if md, err := h.buildMetadata(location, stored); err == nil {
            _ = h.meta.Insert(md)
            setValidators(c, md)
        }
    } else {
        h.logger.Warn().Err(err).Uint64("guest_id", created.ID).Msg("re-read after insert failed")
    }

    c.Response().Header().Set(echo.HeaderLocation, location)
    if wantsSiren(c) {
        return siren(c, http.StatusCreated, hypermedia.GuestEntity(created, absoluteURL(c, location)))
    }
    return c.JSON(http.StatusCreated, created)
}

// GetGuest handles GET /v1/guests/:id. It answers 304 when If-None-Match
// matches the current entity tag, or when If-Modified-Since is not older
// than the cached last-modified instant.
func (h *GuestHandler) GetGuest(c echo.Context) error {
    id, ok := parseID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid guest id"})
    }
    g, err := h.svc.GetGuest(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            h.meta.Delete(guestPath(id))
        }
        return h.fail(c, err)
    }

    md, err := h.currentMetadata(guestPath(id), g)
    if err != nil {
        h.logger.Error().Err(err).Uint64("guest_id", id).Msg("resource metadata unavailable")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
    setValidators(c, md)
    if notModified(c.Request(), md) {
        return c.NoContent(http.StatusNotModified)
    }
    if wantsSiren(c) {
        return siren(c, http.StatusOK, hypermedia.GuestEntity(g, requestURL(c)))
    }
    return c.JSON(http.StatusOK, g)
}

// ReplaceGuest handles PUT /v1/guests/:id. With If-Match, the tag is
// checked against the locked row inside the same unit of work as the
// write; a mismatch writes nothing and answers 412.
func (h *GuestHandler) ReplaceGuest(c echo.Context) error {
    id, ok := parseID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid guest id"})
    }
    var req guestReq
    if err := h.bind(c, &req); err != nil {
        return err
    }
    ctx := c.Request().Context()
    address := guestPath(id)

    var precondition func(model.Guest) error
    if ifMatch := c.Request().Header.Get("If-Match"); ifMatch != "" {
        precondition = func(current model.Guest) error {
            tag, err := metadata.ComputeEntityTag(current)
            if err != nil {
                return err
            }
            if !ifMatchSatisfied(ifMatch, tag) {
                return fmt.Errorf("guest %d: if-match %s: %w", id, ifMatch, service.ErrPreconditionFailed)
            }
            return nil
        }
    }

    if err := h.svc.ReplaceGuest(ctx, req.toModel(id), precondition); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            h.meta.Delete(address)
        }
        return h.fail(c, err)
    }

    if stored, err := h.svc.GetGuest(ctx, id); err == nil {
        if md, err := h.buildMetadata(address, stored); err == nil {
            if err := h.meta.Update(md); err != nil && !errors.Is(err, metadata.ErrNotCached) {
                h.logger.Warn().Err(err).Str("address", address).Msg("metadata refresh failed")
            }
            setValidators(c, md)
        }
    } else {
        h.meta.Delete(address)
    }
    return c.NoContent(http.StatusNoContent)
}

// DeleteGuest handles DELETE /v1/guests/:id.
func (h *GuestHandler) DeleteGuest(c echo.Context) error {
    id, ok := parseID(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid guest id"})
    }
    if err := h.svc.DeleteGuest(c.Request().Context(), id); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            h.meta.Delete(guestPath(id))
        }
        return h.fail(c, err)
    }
    h.meta.Delete(guestPath(id))
    return c.NoContent(http.StatusNoContent)
}

// currentMetadata returns the cached metadata for address, creating it on
// a miss. A cached tag that no longer matches g (the row changed outside
// this process) is replaced with a fresh entry stamped now.
func (h *GuestHandler) currentMetadata(address string, g model.Guest) (metadata.ResourceMetadata, error) {
    tag, err := metadata.ComputeEntityTag(g)
    if err != nil {
        return metadata.ResourceMetadata{}, err
    }
    md, err := h.meta.GetOrCreate(address, func() (metadata.ResourceMetadata, error) {
        return metadata.NewResourceMetadata(address, h.now(), tag)
    })
    if err != nil {
        return metadata.ResourceMetadata{}, err
    }
    if md.EntityTag() == tag {
        return md, nil
    }
    fresh, err := metadata.NewResourceMetadata(address, h.now(), tag)
    if err != nil {
        return metadata.ResourceMetadata{}, err
    }
    if err := h.meta.Insert(fresh); err != nil {
        return metadata.ResourceMetadata{}, err
    }
    return fresh, nil
}

func (h *GuestHandler) buildMetadata(address string, g model.Guest) (metadata.ResourceMetadata, error) {
    tag, err := metadata.ComputeEntityTag(g)
    if err != nil {
        return metadata.ResourceMetadata{}, err
    }
    return metadata.NewResourceMetadata(address, h.now(), tag)
}

func (h *GuestHandler) bind(c echo.Context, req *guestReq) error {
    if err := json.NewDecoder(c.Request().Body).Decode(req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.validate.Struct(req); err != nil {
        var verrs validator.ValidationErrors
        if errors.As(err, &verrs) {
            fields := make([]string, 0, len(verrs))
            for _, fe := range verrs {
                fields = append(fields, fe.Namespace()+" "+fe.Tag())
            }
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
        }
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed"})
    }
    if req.Reservation != nil && req.Reservation.IsAttending == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{
            "error": "validation failed", "fields": []string{"guestReq.Reservation.IsAttending required"},
        })
    }
    return nil
}

// fail maps service errors onto HTTP responses.
func (h *GuestHandler) fail(c echo.Context, err error) error {
    var nf *repository.NotFoundError
    switch {
    case errors.As(err, &nf):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "guest not found", "id": nf.ID})
    case errors.Is(err, model.ErrInvalidQuery):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrPreconditionFailed):
        return c.JSON(http.StatusPreconditionFailed, echo.Map{"error": "guest was modified"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting guest data"})
    }
    h.logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func guestPath(id uint64) string { return GuestsPath + "/" + strconv.FormatUint(id, 10) }

func parseID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    return id, err == nil && id > 0
}

func optionalInt(qp url.Values, key string) (*int, error) {
    if !qp.Has(key) {
        return nil, nil
    }
    n, err := strconv.Atoi(qp.Get(key))
    if err != nil {
        return nil, err
    }
    return &n, nil
}

func optionalString(qp url.Values, key string) *string {
    if !qp.Has(key) {
        return nil
    }
    v := qp.Get(key)
    return &v
}

func setValidators(c echo.Context, md metadata.ResourceMetadata) {
    h := c.Response().Header()
    h.Set("ETag", md.EntityTag().String())
    h.Set("Last-Modified", md.LastModified().Format(http.TimeFormat))
    h.Set("Cache-Control", "private, no-cache")
}

// notModified applies If-None-Match, and only when that header is absent,
// If-Modified-Since.
func notModified(r *http.Request, md metadata.ResourceMetadata) bool {
    if inm := r.Header.Get("If-None-Match"); inm != "" {
        return metadata.MatchesAny(inm, md.EntityTag())
    }
    if ims := r.Header.Get("If-Modified-Since"); ims != "" {
        t, err := http.ParseTime(ims)
        if err != nil {
            return false
        }
        return !md.LastModified().After(t)
    }
    return false
}

func ifMatchSatisfied(header string, current metadata.EntityTag) bool {
    tags, wildcard := metadata.ParseEntityTags(header)
    if wildcard {
        return true
    }
    for _, t := range tags {
        if t.StrongMatch(current) {
            return true
        }
    }
    return false
}

func wantsSiren(c echo.Context) bool {
    return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), hypermedia.MediaType)
}

func siren(c echo.Context, status int, e hypermedia.Entity) error {
    body, err := json.Marshal(e)
    if err != nil {
        return err
    }
    return c.Blob(status, hypermedia.MediaType, body)
}

func requestURL(c echo.Context) *url.URL {
    return absoluteURL(c, c.Request().URL.RequestURI())
}

func absoluteURL(c echo.Context, pathAndQuery string) *url.URL {
    u, err := url.Parse(pathAndQuery)
    if err != nil {
        u = &url.URL{Path: pathAndQuery}
    }
    u.Scheme = c.Scheme()
    u.Host = c.Request().Host
    return u
}
