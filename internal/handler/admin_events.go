package handler

import (
    "context"
    "math"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/event-reservation/internal/model"
    "github.com/iliyamo/event-reservation/internal/service"
)

// TicketCounter reports how many tickets of an event sit in each
// reservation status.
type TicketCounter interface {
    TicketsByStatus(ctx context.Context, eventID uint64) (map[model.ReservationStatus]int, error)
}

// AdminEventHandler lets admins organize events.
type AdminEventHandler struct {
    Events  *service.EventService
    Tickets TicketCounter
    // Purge, when set, drops cached public catalog responses after a write.
    Purge func(ctx context.Context) error
    Log   *zap.Logger
}

// NewAdminEventHandler constructs an AdminEventHandler.  purge may be nil.
func NewAdminEventHandler(events *service.EventService, tickets TicketCounter, purge func(ctx context.Context) error, log *zap.Logger) *AdminEventHandler {
    if events == nil || tickets == nil {
        panic("nil dependency passed to NewAdminEventHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AdminEventHandler{Events: events, Tickets: tickets, Purge: purge, Log: log}
}

// eventReq is the body of create and update requests.  Omitted fields
// keep their current value on update.  price_cents wins over price.
type eventReq struct {
    Title       *string    `json:"title"`
    Description *string    `json:"description"`
    Location    *string    `json:"location"`
    Capacity    *int       `json:"capacity"`
    StartDate   *time.Time `json:"start_date"`
    EndDate     *time.Time `json:"end_date"`
    PriceCents  *int64     `json:"price_cents"`
    Price       *float64   `json:"price"`
}

// apply overlays the provided fields on in.
func (r eventReq) apply(in *service.EventInput) {
    if r.Title != nil {
        in.Title = *r.Title
    }
    if r.Description != nil {
        in.Description = *r.Description
    }
    if r.Location != nil {
        in.Location = *r.Location
    }
    if r.Capacity != nil {
        in.Capacity = *r.Capacity
    }
    if r.StartDate != nil {
        in.StartDate = *r.StartDate
    }
    if r.EndDate != nil {
        in.EndDate = *r.EndDate
    }
    switch {
    case r.PriceCents != nil:
        in.PriceCents = *r.PriceCents
    case r.Price != nil:
        in.PriceCents = int64(math.Round(*r.Price * 100))
    }
}

func (h *AdminEventHandler) purge(ctx context.Context) {
    if h.Purge == nil {
        return
    }
    if err := h.Purge(ctx); err != nil {
        h.Log.Warn("event cache purge failed", zap.Error(err))
    }
}

// ListEvents handles GET /v1/admin/events.
func (h *AdminEventHandler) ListEvents(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    page, ps := pageParams(c)
    items, total, err := h.Events.ListMine(c.Request().Context(), actor, page, ps)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return paged(c, items, total, page, ps)
}

// CreateEvent handles POST /v1/admin/events.  New events start as drafts.
func (h *AdminEventHandler) CreateEvent(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var req eventReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    var in service.EventInput
    req.apply(&in)
    e, err := h.Events.Create(c.Request().Context(), actor, in)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, e)
}

// GetEvent handles GET /v1/admin/events/:id.  The response adds the ticket
// count per reservation status.
func (h *AdminEventHandler) GetEvent(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx := c.Request().Context()
    e, err := h.Events.Get(ctx, actor, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    stats, err := h.Tickets.TicketsByStatus(ctx, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "event":             e,
        "available_spots":   e.AvailableSpots(),
        "tickets_by_status": stats,
    })
}

// UpdateEvent handles PUT and PATCH /v1/admin/events/:id.
func (h *AdminEventHandler) UpdateEvent(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req eventReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx := c.Request().Context()
    cur, err := h.Events.Get(ctx, actor, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    in := service.EventInput{
        Title:       cur.Title,
        Description: cur.Description,
        Location:    cur.Location,
        Capacity:    cur.Capacity,
        StartDate:   cur.StartDate,
        EndDate:     cur.EndDate,
        PriceCents:  cur.PriceCents,
    }
    req.apply(&in)
    e, err := h.Events.Update(ctx, actor, id, in)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    h.purge(ctx)
    return c.JSON(http.StatusOK, e)
}

// PublishEvent handles POST /v1/admin/events/:id/publish.
func (h *AdminEventHandler) PublishEvent(c echo.Context) error {
    return h.changeStatus(c, h.Events.Publish)
}

// CancelEvent handles POST /v1/admin/events/:id/cancel.
func (h *AdminEventHandler) CancelEvent(c echo.Context) error {
    return h.changeStatus(c, h.Events.Cancel)
}

func (h *AdminEventHandler) changeStatus(c echo.Context, op func(context.Context, model.Actor, uint64) (*model.Event, error)) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    e, err := op(c.Request().Context(), actor, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    h.purge(c.Request().Context())
    return c.JSON(http.StatusOK, e)
}
