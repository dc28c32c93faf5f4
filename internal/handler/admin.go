package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventix-booking/internal/model"
)

// ListPayments handles GET /v1/admin/payments.
func (h *BookingHandler) ListPayments(c echo.Context) error {
	out, err := h.Payments.List(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	if out == nil {
		out = []model.Payment{}
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": out})
}

// GetPayment handles GET /v1/admin/payments/:id.
func (h *BookingHandler) GetPayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	pay, err := h.Payments.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, pay)
}

// DeletePayment handles DELETE /v1/admin/payments/:id.  The reservation
// and its tickets are not touched.
func (h *BookingHandler) DeletePayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.Payments.Delete(c.Request().Context(), id); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// IssueTickets handles POST /v1/admin/reservations/:id/tickets.  It runs
// the idempotent issuer for a PAID reservation, which repairs a
// reservation whose tickets were never generated.
func (h *BookingHandler) IssueTickets(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	tickets, err := h.Tickets.IssueForReservation(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// ListEventReservations handles GET /v1/admin/events/:id/reservations.
// The status query parameter defaults to HELD.
func (h *BookingHandler) ListEventReservations(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	status := model.ReservationStatus(strings.ToUpper(c.QueryParam("status")))
	if status == "" {
		status = model.ReservationHeld
	}
	out, err := h.Reservations.ListByEventAndStatus(c.Request().Context(), id, status)
	if err != nil {
		return h.respondError(c, err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}
