// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/eventix-booking/internal/handler"
	"github.com/iliyamo/eventix-booking/internal/middleware"
)

// RegisterRoutes registers the routes that do not require authentication:
// liveness, readiness and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterBooking registers the booking API under /v1.  Every route
// requires a bearer token; limit guards the state-changing routes.
//
//	customers  reserve, pay, cancel and read their own reservations
//	staff      check tickets in and read any reservation
//	admins     everything, plus /v1/admin
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	anyone := middleware.RequireRole(middleware.RoleCustomer, middleware.RoleStaff, middleware.RoleAdmin)
	buyers := middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin)
	gate := middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin)

	g.POST("/reservations", h.CreateReservation, buyers, limit)
	g.GET("/reservations/:id", h.GetReservation, anyone)
	g.GET("/my-reservations", h.ListMyReservations, anyone)
	g.DELETE("/reservations/:id", h.CancelReservation, buyers, limit)
	g.POST("/reservations/:id/payments", h.PayReservation, buyers, limit)
	g.GET("/reservations/:id/payment", h.GetReservationPayment, anyone)
	g.GET("/reservations/:id/tickets", h.ListReservationTickets, anyone)

	g.GET("/tickets/:code", h.GetTicket, anyone)
	g.PUT("/tickets/:code/checkin", h.CheckInTicket, gate, limit)

	g.GET("/events/:id/availability", h.Availability, anyone)

	admin := g.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/payments", h.ListPayments)
	admin.GET("/payments/:id", h.GetPayment)
	admin.DELETE("/payments/:id", h.DeletePayment)
	admin.POST("/reservations/:id/tickets", h.IssueTickets)
	admin.GET("/events/:id/reservations", h.ListEventReservations)
}
