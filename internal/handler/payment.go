package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/eventix-booking/internal/model"
)

type payRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// PayReservation handles POST /v1/reservations/:id/payments.  Paying a
// reservation that is already paid returns the original payment.
func (h *BookingHandler) PayReservation(c echo.Context) error {
	res, err := h.loadReservation(c, canModify)
	if err != nil {
		return h.respondError(c, err)
	}
	var body payRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	method := model.PaymentMethod(strings.ToUpper(strings.TrimSpace(body.Method)))
	pay, err := h.Payments.Pay(c.Request().Context(), res.ID, body.Amount, method)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, pay)
}

// GetReservationPayment handles GET /v1/reservations/:id/payment.
func (h *BookingHandler) GetReservationPayment(c echo.Context) error {
	res, err := h.loadReservation(c, canRead)
	if err != nil {
		return h.respondError(c, err)
	}
	pay, err := h.Payments.GetByReservationID(c.Request().Context(), res.ID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, pay)
}
