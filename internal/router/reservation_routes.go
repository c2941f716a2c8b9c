package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/middleware"
	"github.com/iliyamo/event-reservation/internal/model"
)

// RegisterReservations registers the reservation endpoints of signed-in
// users under /v1.  Admins may call them too; ownership is enforced by the
// services.  limiter, when set, throttles reservation creation.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	var create []echo.MiddlewareFunc
	if limiter != nil {
		create = append(create, limiter)
	}
	g.POST("/reservations", h.CreateReservation, create...)
	g.GET("/my-reservations", h.ListMyReservations)

	g.GET("/reservations/:id", h.GetReservation)
	g.POST("/reservations/:id/cancel", h.CancelReservation)
	g.GET("/reservations/:id/ticket", h.DownloadTicket)
	g.GET("/reservations/:id/qr", h.QRCode)
}
