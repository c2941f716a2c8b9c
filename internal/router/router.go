package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/event-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/event-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/event-reservation/internal/model"      // role names
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	// Load balancers and monitoring systems poll /healthz.
	e.GET("/healthz", health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.  limiter may be nil.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	// Operations that do not require an existing session (register, login,
	// refresh) are rate limited per client to slow down credential stuffing.
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// issues a new access token without rotating the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	// logout takes a refresh token in the body and needs no access token
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	auth.GET("/me", a.Me)

	// Clients can call either /v1/auth/logout or /v1/logout.
	e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers unauthenticated browse endpoints.  Only
// published events are visible.  cache may be nil; it is skipped for
// requests that carry credentials.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if cache != nil {
		mw = append(mw, cache)
	}
	e.GET("/v1/events", p.SearchEvents, mw...)
	e.GET("/v1/events/search", p.SearchEvents, mw...)
	e.GET("/v1/events/:id", p.GetEvent, mw...)
}
