package handler

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/event-reservation/internal/model"
    "github.com/iliyamo/event-reservation/internal/repository"
    "github.com/iliyamo/event-reservation/internal/service"
)

// ReservationHandler serves the reservation endpoints of signed-in users.
// Ownership checks happen in the services; handlers only translate HTTP.
type ReservationHandler struct {
    Engine  *service.ReservationService
    Tickets *service.TicketService
    Log     *zap.Logger
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(engine *service.ReservationService, tickets *service.TicketService, log *zap.Logger) *ReservationHandler {
    if engine == nil || tickets == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Engine: engine, Tickets: tickets, Log: log}
}

type createReservationReq struct {
    EventID         uint64 `json:"event_id"`
    NumberOfTickets int    `json:"number_of_tickets"`
}

type cancelReq struct {
    Reason string `json:"reason"`
}

// statusFilter parses the optional ?status= query parameter.
func statusFilter(c echo.Context) (model.ReservationStatus, bool) {
    raw := strings.TrimSpace(c.QueryParam("status"))
    if raw == "" {
        return "", true
    }
    return model.ParseReservationStatus(raw)
}

// CreateReservation handles POST /v1/reservations.  A successful request
// returns the confirmed reservation with 201.
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var req createReservationReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    res, err := h.Engine.Create(c.Request().Context(), actor, service.CreateInput{
        EventID:         req.EventID,
        NumberOfTickets: req.NumberOfTickets,
    })
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// ListMyReservations handles GET /v1/my-reservations?status&page&page_size.
func (h *ReservationHandler) ListMyReservations(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    status, ok := statusFilter(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
    }
    page, ps := pageParams(c)
    items, total, err := h.Engine.ListMine(c.Request().Context(), actor, repository.ReservationFilter{
        Status: status, Page: page, PageSize: ps,
    })
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return paged(c, items, total, page, ps)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    res, err := h.Engine.Get(c.Request().Context(), actor, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// CancelReservation handles POST /v1/reservations/:id/cancel with an
// optional {"reason": "..."} body.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req cancelReq
    _ = c.Bind(&req) // the body is optional
    res, err := h.Engine.Cancel(c.Request().Context(), actor, id, req.Reason)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// DownloadTicket handles GET /v1/reservations/:id/ticket and returns the PDF.
func (h *ReservationHandler) DownloadTicket(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    pdf, res, err := h.Tickets.RenderTicket(c.Request().Context(), actor, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    c.Response().Header().Set(echo.HeaderContentDisposition,
        `attachment; filename="ticket-`+res.ReservationNumber+`.pdf"`)
    return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// QRCode handles GET /v1/reservations/:id/qr?size=N and returns a PNG.
func (h *ReservationHandler) QRCode(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    size, _ := strconv.Atoi(c.QueryParam("size"))
    png, err := h.Tickets.QRImage(c.Request().Context(), actor, id, size)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.Blob(http.StatusOK, "image/png", png)
}
