// Package router registers the HTTP routes of the booking front-end.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-booking/internal/handler"
	"github.com/iliyamo/lab-booking/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBookings registers the booking routes under /v1.  Every route
// requires a valid access token; approve and reject additionally require
// one of the approver roles.  extra middleware (rate limiting) runs after
// authentication so limits can be keyed by user.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.Use(extra...)

	g.GET("/bookings", h.List)
	g.GET("/bookings/mine", h.Mine)
	g.GET("/bookings/pending", h.Pending)
	g.POST("/bookings", h.Create)
	g.GET("/bookings/:id", h.Get)
	g.PUT("/bookings/:id", h.Update)
	g.DELETE("/bookings/:id", h.Delete)
	g.GET("/bookings/:id/decisions", h.ListDecisions)

	approver := middleware.RequireRole(h.ApproverRoles...)
	g.PATCH("/bookings/:id/approve", h.Approve, approver)
	g.PATCH("/bookings/:id/reject", h.Reject, approver)

	g.GET("/calendar", h.Calendar)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/labs/:id", h.Lab)
	g.GET("/slots", h.Slots)
}
