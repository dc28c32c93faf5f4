// Package handler exposes the booking workflow over HTTP.  Handlers parse
// and authorize requests, call the booking services and map their errors
// onto status codes; they hold no business rules of their own.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/eventix-booking/internal/middleware"
	"github.com/iliyamo/eventix-booking/internal/model"
	"github.com/iliyamo/eventix-booking/internal/service"
)

type ReservationService interface {
	Create(ctx context.Context, userID, eventID uint64, seats int) (model.Reservation, error)
	Cancel(ctx context.Context, id uint64) (model.Reservation, error)
	Get(ctx context.Context, id uint64) (model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListByEventAndStatus(ctx context.Context, eventID uint64, status model.ReservationStatus) ([]model.Reservation, error)
}

type PaymentService interface {
	Pay(ctx context.Context, reservationID uint64, amount decimal.Decimal, method model.PaymentMethod) (model.Payment, error)
	GetByReservationID(ctx context.Context, reservationID uint64) (model.Payment, error)
	GetByID(ctx context.Context, id uint64) (model.Payment, error)
	List(ctx context.Context) ([]model.Payment, error)
	Delete(ctx context.Context, id uint64) error
}

type TicketService interface {
	IssueForReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error)
	CheckIn(ctx context.Context, code string) (model.Ticket, error)
	GetByCode(ctx context.Context, code string) (model.Ticket, error)
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error)
}

type InventoryService interface {
	Availability(ctx context.Context, eventID uint64) (model.Event, error)
}

// BookingHandler serves the reservation, payment, ticket and admin
// endpoints.  All methods assume JWTAuth ran before them.
type BookingHandler struct {
	Reservations ReservationService
	Payments     PaymentService
	Tickets      TicketService
	Inventory    InventoryService
	Logger       logrus.FieldLogger
}

// NewBookingHandler wires a handler to the booking services.
func NewBookingHandler(svc *service.Services, logger logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{
		Reservations: svc.Reservations,
		Payments:     svc.Payments,
		Tickets:      svc.Tickets,
		Inventory:    svc.Ledger,
		Logger:       logger,
	}
}

var errForbidden = errors.New("forbidden")

// respondError writes err as {"error": "..."} with the status matching its
// kind.  Unexpected errors are logged and reported without detail.
func (h *BookingHandler) respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrCapacityExceeded):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("path", c.Path()).Error("request failed")
		if errors.Is(err, service.ErrConsistencyViolation) {
			return c.JSON(status, echo.Map{"error": "inventory consistency violation"})
		}
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s: %w", name, service.ErrValidation)
	}
	return id, nil
}

// getUserID returns the authenticated user or an error when the context
// carries none.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

// canRead reports whether the caller may see a reservation and what hangs
// off it.  Staff and admins see everything, customers their own.
func canRead(c echo.Context, res model.Reservation) bool {
	switch middleware.Role(c) {
	case middleware.RoleAdmin, middleware.RoleStaff:
		return true
	}
	uid, ok := middleware.UserID(c)
	return ok && uid == res.UserID
}

// canModify reports whether the caller may pay for or cancel a
// reservation: its owner or an admin.
func canModify(c echo.Context, res model.Reservation) bool {
	if middleware.Role(c) == middleware.RoleAdmin {
		return true
	}
	uid, ok := middleware.UserID(c)
	return ok && uid == res.UserID
}

// loadReservation fetches the reservation named by the :id parameter and
// checks access with allow.  A reservation the caller may not see is
// reported as not found so that IDs cannot be probed.
func (h *BookingHandler) loadReservation(c echo.Context, allow func(echo.Context, model.Reservation) bool) (model.Reservation, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return model.Reservation{}, err
	}
	res, err := h.Reservations.Get(c.Request().Context(), id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !canRead(c, res) {
		return model.Reservation{}, fmt.Errorf("reservation %d: %w", id, service.ErrNotFound)
	}
	if !allow(c, res) {
		return model.Reservation{}, errForbidden
	}
	return res, nil
}
