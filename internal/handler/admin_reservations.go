package handler

// This file registers the admin side of the reservation lifecycle:
// listing reservations of the admin's events, support lookups by number,
// manual transitions and door verification by QR token.

import (
    "context"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/event-reservation/internal/model"
    "github.com/iliyamo/event-reservation/internal/repository"
    "github.com/iliyamo/event-reservation/internal/service"
)

// AdminReservationHandler serves /v1/admin/reservations.
type AdminReservationHandler struct {
    Engine  *service.ReservationService
    Tickets *service.TicketService
    Log     *zap.Logger
}

// NewAdminReservationHandler constructs an AdminReservationHandler.
func NewAdminReservationHandler(engine *service.ReservationService, tickets *service.TicketService, log *zap.Logger) *AdminReservationHandler {
    if engine == nil || tickets == nil {
        panic("nil service passed to NewAdminReservationHandler")
    }
    return &AdminReservationHandler{Engine: engine, Tickets: tickets, Log: log}
}

type qrReq struct {
    QRCode string `json:"qr_code"`
}

// ListReservations handles GET /v1/admin/reservations?event_id&status&page&page_size.
func (h *AdminReservationHandler) ListReservations(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    f := repository.ReservationFilter{}
    if raw := strings.TrimSpace(c.QueryParam("event_id")); raw != "" {
        id, err := strconv.ParseUint(raw, 10, 64)
        if err != nil || id == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event_id"})
        }
        f.EventID = id
    }
    status, ok := statusFilter(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
    }
    f.Status = status
    f.Page, f.PageSize = pageParams(c)

    items, total, err := h.Engine.ListForAdmin(c.Request().Context(), actor, f)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return paged(c, items, total, f.Page, f.PageSize)
}

// GetByNumber handles GET /v1/admin/reservations/number/:number.
func (h *AdminReservationHandler) GetByNumber(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    number := strings.TrimSpace(c.Param("number"))
    if number == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation number"})
    }
    res, err := h.Engine.GetByNumber(c.Request().Context(), actor, number)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// transition runs one lifecycle operation on the reservation in the path.
func (h *AdminReservationHandler) transition(c echo.Context, op func(context.Context, model.Actor, uint64) (*model.Reservation, error)) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    res, err := op(c.Request().Context(), actor, id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Confirm handles POST /v1/admin/reservations/:id/confirm.
func (h *AdminReservationHandler) Confirm(c echo.Context) error {
    return h.transition(c, h.Engine.Confirm)
}

// Cancel handles POST /v1/admin/reservations/:id/cancel.  Admins are not
// bound by the cancellation window.
func (h *AdminReservationHandler) Cancel(c echo.Context) error {
    var req cancelReq
    _ = c.Bind(&req)
    return h.transition(c, func(ctx context.Context, a model.Actor, id uint64) (*model.Reservation, error) {
        return h.Engine.Cancel(ctx, a, id, req.Reason)
    })
}

// CheckIn handles POST /v1/admin/reservations/:id/check-in.
func (h *AdminReservationHandler) CheckIn(c echo.Context) error {
    return h.transition(c, h.Engine.CheckIn)
}

// NoShow handles POST /v1/admin/reservations/:id/no-show.
func (h *AdminReservationHandler) NoShow(c echo.Context) error {
    return h.transition(c, h.Engine.MarkNoShow)
}

// Refund handles POST /v1/admin/reservations/:id/refund.
func (h *AdminReservationHandler) Refund(c echo.Context) error {
    return h.transition(c, h.Engine.Refund)
}

// Verify handles POST /v1/admin/reservations/verify {"qr_code": "..."}.
// It always answers 200 with {valid, message, reservation}.
func (h *AdminReservationHandler) Verify(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var req qrReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.QRCode) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_code required"})
    }
    v, err := h.Tickets.VerifyByQRToken(c.Request().Context(), actor, req.QRCode)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, v)
}

// CheckInByQR handles POST /v1/admin/reservations/check-in {"qr_code": "..."}.
func (h *AdminReservationHandler) CheckInByQR(c echo.Context) error {
    actor, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var req qrReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.QRCode) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_code required"})
    }
    res, err := h.Tickets.CheckInByQRToken(c.Request().Context(), actor, req.QRCode)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}
