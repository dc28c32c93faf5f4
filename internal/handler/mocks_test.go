package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/eventix-booking/internal/middleware"
	"github.com/iliyamo/eventix-booking/internal/model"
)

type mockReservations struct{ mock.Mock }

func (m *mockReservations) Create(ctx context.Context, userID, eventID uint64, seats int) (model.Reservation, error) {
	args := m.Called(ctx, userID, eventID, seats)
	return args.Get(0).(model.Reservation), args.Error(1)
}

func (m *mockReservations) Cancel(ctx context.Context, id uint64) (model.Reservation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Reservation), args.Error(1)
}

func (m *mockReservations) Get(ctx context.Context, id uint64) (model.Reservation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Reservation), args.Error(1)
}

func (m *mockReservations) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Reservation), args.Error(1)
}

func (m *mockReservations) ListByEventAndStatus(ctx context.Context, eventID uint64, status model.ReservationStatus) ([]model.Reservation, error) {
	args := m.Called(ctx, eventID, status)
	return args.Get(0).([]model.Reservation), args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) Pay(ctx context.Context, reservationID uint64, amount decimal.Decimal, method model.PaymentMethod) (model.Payment, error) {
	args := m.Called(ctx, reservationID, amount, method)
	return args.Get(0).(model.Payment), args.Error(1)
}

func (m *mockPayments) GetByReservationID(ctx context.Context, reservationID uint64) (model.Payment, error) {
	args := m.Called(ctx, reservationID)
	return args.Get(0).(model.Payment), args.Error(1)
}

func (m *mockPayments) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Payment), args.Error(1)
}

func (m *mockPayments) List(ctx context.Context) ([]model.Payment, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Payment), args.Error(1)
}

func (m *mockPayments) Delete(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

type mockTickets struct{ mock.Mock }

func (m *mockTickets) IssueForReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error) {
	args := m.Called(ctx, reservationID)
	return args.Get(0).([]model.Ticket), args.Error(1)
}

func (m *mockTickets) CheckIn(ctx context.Context, code string) (model.Ticket, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(model.Ticket), args.Error(1)
}

func (m *mockTickets) GetByCode(ctx context.Context, code string) (model.Ticket, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(model.Ticket), args.Error(1)
}

func (m *mockTickets) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error) {
	args := m.Called(ctx, reservationID)
	return args.Get(0).([]model.Ticket), args.Error(1)
}

type mockInventory struct{ mock.Mock }

func (m *mockInventory) Availability(ctx context.Context, eventID uint64) (model.Event, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(model.Event), args.Error(1)
}

type harness struct {
	h            *BookingHandler
	reservations *mockReservations
	payments     *mockPayments
	tickets      *mockTickets
	inventory    *mockInventory
}

func newHarness() *harness {
	logger, _ := test.NewNullLogger()
	hs := &harness{
		reservations: &mockReservations{},
		payments:     &mockPayments{},
		tickets:      &mockTickets{},
		inventory:    &mockInventory{},
	}
	hs.h = &BookingHandler{
		Reservations: hs.reservations,
		Payments:     hs.payments,
		Tickets:      hs.tickets,
		Inventory:    hs.inventory,
		Logger:       logger,
	}
	return hs
}

func (hs *harness) assertExpectations(t *testing.T) {
	hs.reservations.AssertExpectations(t)
	hs.payments.AssertExpectations(t)
	hs.tickets.AssertExpectations(t)
	hs.inventory.AssertExpectations(t)
}

// caller is the identity JWTAuth would have stored.
type caller struct {
	userID uint64
	role   string
}

var (
	customer      = caller{userID: 42, role: middleware.RoleCustomer}
	otherCustomer = caller{userID: 7, role: middleware.RoleCustomer}
	staff         = caller{userID: 2, role: middleware.RoleStaff}
	admin         = caller{userID: 1, role: middleware.RoleAdmin}
)

// call routes one request through route to fn as who.
func call(who caller, method, route, target, body string, fn echo.HandlerFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.Add(method, route, fn, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if who.userID != 0 {
				c.Set(middleware.ContextUserID, who.userID)
				c.Set(middleware.ContextRole, who.role)
			}
			return next(c)
		}
	})
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
