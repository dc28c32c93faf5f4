package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ListReservationTickets handles GET /v1/reservations/:id/tickets.
func (h *BookingHandler) ListReservationTickets(c echo.Context) error {
	res, err := h.loadReservation(c, canRead)
	if err != nil {
		return h.respondError(c, err)
	}
	tickets, err := h.Tickets.ListByReservation(c.Request().Context(), res.ID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// GetTicket handles GET /v1/tickets/:code.  Customers only see tickets of
// their own reservations.
func (h *BookingHandler) GetTicket(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.Tickets.GetByCode(ctx, strings.TrimSpace(c.Param("code")))
	if err != nil {
		return h.respondError(c, err)
	}
	res, err := h.Reservations.Get(ctx, t.ReservationID)
	if err != nil {
		return h.respondError(c, err)
	}
	if !canRead(c, res) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}
	return c.JSON(http.StatusOK, t)
}

// CheckInTicket handles PUT /v1/tickets/:code/checkin.  Checking in a
// ticket twice returns it unchanged; a canceled ticket yields 409.
func (h *BookingHandler) CheckInTicket(c echo.Context) error {
	t, err := h.Tickets.CheckIn(c.Request().Context(), strings.TrimSpace(c.Param("code")))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
