// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/handler"
	"github.com/iliyamo/event-hall-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts a refresh token in the body and does not require a JWT.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("user", "host", "admin"))
	auth.GET("/me", a.Me)
	auth.PUT("/me", a.UpdateMe)
	auth.POST("/logout-all", a.LogoutAll)
}

// RegisterPublic registers unauthenticated browse endpoints.  Approved
// events and the hall catalogue are visible to guests; the response
// cache middleware, when enabled, fronts these read-only listings.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, halls *handler.HallHandler, cats *handler.CategoryHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("/events", p.ListEvents)
	g.GET("/events/:id", p.GetEvent)
	g.GET("/halls", halls.List)
	g.GET("/halls/:id", halls.Get)
	g.GET("/categories", cats.List)
	g.GET("/categories/:id", cats.Get)
}

// RegisterUser registers attendee registration endpoints.  Any
// authenticated account may register for events, hosts included.
func RegisterUser(e *echo.Echo, u *handler.UserHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("user", "host", "admin"))
	g.POST("/events/:id/register", u.Register)
	g.POST("/events/:id/confirm", u.Confirm)
	g.DELETE("/events/:id/register", u.Unregister)
	g.GET("/me/events", u.MyEvents)
}

// RegisterHost registers event management endpoints for approved hosts.
func RegisterHost(e *echo.Echo, h *handler.HostHandler, jwtSecret string) {
	g := e.Group("/v1/host")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("host", "admin"))
	g.Use(middleware.RequireApprovedHost())
	g.POST("/events", h.Create)
	g.GET("/events", h.ListMine)
	g.PUT("/events/:id", h.Update)
	g.DELETE("/events/:id", h.Delete)
	g.GET("/events/:id/registrations", h.Registrations)
}

// RegisterAdmin registers the moderation and administration surface.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, halls *handler.HallHandler, cats *handler.CategoryHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("admin"))

	g.GET("/events", a.ListEvents)
	g.POST("/events/:id/approve", a.Approve)
	g.POST("/events/:id/reject", a.Reject)
	g.DELETE("/events/:id", a.DeleteEvent)

	g.GET("/users", a.ListUsers)
	g.POST("/users/:id/host-status", a.SetHostStatus)
	g.DELETE("/users/:id", a.DeleteUser)

	g.POST("/halls", halls.Create)
	g.PUT("/halls/:id", halls.Update)
	g.DELETE("/halls/:id", halls.Delete)
	g.GET("/halls/:id/reservations", halls.Reservations)

	g.POST("/categories", cats.Create)
	g.PUT("/categories/:id", cats.Update)
	g.DELETE("/categories/:id", cats.Delete)
}
