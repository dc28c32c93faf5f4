package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventix-booking/internal/model"
)

type createReservationRequest struct {
	EventID uint64 `json:"event_id"`
	Seats   int    `json:"seats"`
}

// CreateReservation handles POST /v1/reservations.  It holds the
// requested number of seats for the caller and returns 201 with the HELD
// reservation, or 409 when the event lacks capacity.
func (h *BookingHandler) CreateReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
	}
	res, err := h.Reservations.Create(c.Request().Context(), userID, body.EventID, body.Seats)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *BookingHandler) GetReservation(c echo.Context) error {
	res, err := h.loadReservation(c, canRead)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListMyReservations handles GET /v1/my-reservations.
func (h *BookingHandler) ListMyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Reservations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// CancelReservation handles DELETE /v1/reservations/:id.  Cancelling is
// idempotent; an already cancelled reservation is returned with 200.
func (h *BookingHandler) CancelReservation(c echo.Context) error {
	res, err := h.loadReservation(c, canModify)
	if err != nil {
		return h.respondError(c, err)
	}
	res, err = h.Reservations.Cancel(c.Request().Context(), res.ID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Availability handles GET /v1/events/:id/availability.
func (h *BookingHandler) Availability(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	ev, err := h.Inventory.Availability(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}
