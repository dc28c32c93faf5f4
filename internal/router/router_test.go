package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventix-booking/internal/handler"
	"github.com/iliyamo/eventix-booking/internal/middleware"
	"github.com/iliyamo/eventix-booking/internal/utils"
)

const secret = "router-secret"

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newServer() *echo.Echo {
	logger, _ := test.NewNullLogger()
	e := echo.New()
	RegisterRoutes(e, okPinger{})
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	RegisterBooking(e, &handler.BookingHandler{Logger: logger}, secret, pass)
	return e
}

func request(t *testing.T, e *echo.Echo, method, target, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if role != "" {
		tok, err := utils.NewAccessToken(secret, 42, role, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	e := newServer()

	rec := request(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, e, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBookingRoutesRequireToken(t *testing.T) {
	e := newServer()
	rec := request(t, e, http.MethodGet, "/v1/my-reservations", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGates(t *testing.T) {
	e := newServer()
	for _, tc := range []struct {
		method, target, role string
	}{
		{http.MethodGet, "/v1/admin/payments", middleware.RoleCustomer},
		{http.MethodGet, "/v1/admin/payments", middleware.RoleStaff},
		{http.MethodPost, "/v1/admin/reservations/1/tickets", middleware.RoleCustomer},
		{http.MethodPut, "/v1/tickets/ABC/checkin", middleware.RoleCustomer},
		{http.MethodPost, "/v1/reservations", middleware.RoleStaff},
		{http.MethodPost, "/v1/reservations/1/payments", middleware.RoleStaff},
		{http.MethodGet, "/v1/my-reservations", "GUEST"},
	} {
		rec := request(t, e, tc.method, tc.target, tc.role)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s as %s", tc.method, tc.target, tc.role)
	}
}

func TestRoutesRegistered(t *testing.T) {
	e := newServer()
	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /v1/reservations",
		"GET /v1/reservations/:id",
		"GET /v1/my-reservations",
		"DELETE /v1/reservations/:id",
		"POST /v1/reservations/:id/payments",
		"GET /v1/reservations/:id/payment",
		"GET /v1/reservations/:id/tickets",
		"GET /v1/tickets/:code",
		"PUT /v1/tickets/:code/checkin",
		"GET /v1/events/:id/availability",
		"GET /v1/admin/payments",
		"GET /v1/admin/payments/:id",
		"DELETE /v1/admin/payments/:id",
		"POST /v1/admin/reservations/:id/tickets",
		"GET /v1/admin/events/:id/reservations",
	} {
		assert.True(t, got[want], want)
	}
}
