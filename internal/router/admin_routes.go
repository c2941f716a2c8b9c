package router

// This file registers admin routes.  Admins organize events and manage the
// reservations made for them, including door check-in by QR code.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-reservation/internal/handler"
    "github.com/iliyamo/event-reservation/internal/middleware"
    "github.com/iliyamo/event-reservation/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, ev *handler.AdminEventHandler, rv *handler.AdminReservationHandler, jwtSecret string) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleAdmin),
    )

    // ---- Events ----
    g.GET("/events", ev.ListEvents)
    g.POST("/events", ev.CreateEvent)
    g.GET("/events/:id", ev.GetEvent)
    g.PUT("/events/:id", ev.UpdateEvent)
    g.PATCH("/events/:id", ev.UpdateEvent) // alias for clients that use PATCH
    g.POST("/events/:id/publish", ev.PublishEvent)
    g.POST("/events/:id/cancel", ev.CancelEvent)

    // ---- Reservations ----
    g.GET("/reservations", rv.ListReservations)
    g.GET("/reservations/number/:number", rv.GetByNumber)
    g.POST("/reservations/verify", rv.Verify)
    g.POST("/reservations/check-in", rv.CheckInByQR)
    g.POST("/reservations/:id/confirm", rv.Confirm)
    g.POST("/reservations/:id/cancel", rv.Cancel)
    g.POST("/reservations/:id/check-in", rv.CheckIn)
    g.POST("/reservations/:id/no-show", rv.NoShow)
    g.POST("/reservations/:id/refund", rv.Refund)
}
