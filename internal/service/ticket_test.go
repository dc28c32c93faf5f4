package service

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventix-booking/internal/metrics"
	"github.com/iliyamo/eventix-booking/internal/model"
)

func TestCodeGenerator(t *testing.T) {
	gen := NewCodeGenerator()
	now := start
	seen := map[string]bool{}
	for n := 0; n < 1000; n++ {
		code := gen.Generate(now)
		assert.GreaterOrEqual(t, len(code), minCodeLen)
		assert.LessOrEqual(t, len(code), maxCodeLen)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	code := gen.Generate(now)
	assert.Len(t, code, 20)
	prefix := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	assert.True(t, strings.HasPrefix(code, prefix))
}

func TestIssuer_RequiresPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.store.addEvent(10, 10, "10.00")
	res := f.hold(t, ev.ID, 2)

	_, err := f.svc.Tickets.IssueForReservation(ctx, res.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, f.store.ticketsOf(res.ID))

	_, err = f.svc.Tickets.IssueForReservation(ctx, 555)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssuer_IssueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.store.addEvent(10, 10, "10.00")
	res := f.hold(t, ev.ID, 3)
	f.pay(t, res.ID)
	before := f.store.ticketsOf(res.ID)

	for n := 0; n < 3; n++ {
		got, err := f.svc.Tickets.IssueForReservation(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, before, got)
	}
	assert.Len(t, f.store.ticketsOf(res.ID), 3)
}

func TestIssuer_RegeneratesTakenCode(t *testing.T) {
	for _, blind := range []bool{false, true} {
		f := newFixture(t)
		f.store.blindCodeCheck = blind
		ev := f.store.addEvent(10, 10, "10.00")

		f.codes.codes = []string{"AAAAAAAAAAAAAAAAAAAA"}
		first := f.hold(t, ev.ID, 1)
		f.pay(t, first.ID)

		collisions := testutil.ToFloat64(metrics.TicketCodeCollisions)
		f.codes.codes = []string{"AAAAAAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBBBBBB"}
		second := f.hold(t, ev.ID, 1)
		f.pay(t, second.ID)

		tickets := f.store.ticketsOf(second.ID)
		require.Len(t, tickets, 1)
		assert.Equal(t, "BBBBBBBBBBBBBBBBBBBB", tickets[0].Code)
		assert.Equal(t, collisions+1, testutil.ToFloat64(metrics.TicketCodeCollisions))
	}
}

func TestIssuer_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.store.addEvent(10, 10, "10.00")
	f.codes.codes = []string{"CCCCCCCCCCCCCCCCCCCC"}
	first := f.hold(t, ev.ID, 1)
	f.pay(t, first.ID)

	for n := 0; n < maxCodeAttempts; n++ {
		f.codes.codes = append(f.codes.codes, "CCCCCCCCCCCCCCCCCCCC")
	}
	second := f.hold(t, ev.ID, 1)
	_, err := f.svc.Payments.Pay(ctx, second.ID, mustDecimal("10.00"), model.MethodCard)

	require.ErrorIs(t, err, ErrCodeSpace)
	assert.Empty(t, f.store.ticketsOf(second.ID))
}

// Scenario: checking in twice leaves the ticket USED without error.
func TestIssuer_CheckIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.store.addEvent(10, 10, "10.00")
	res := f.hold(t, ev.ID, 2)
	f.pay(t, res.ID)
	code := f.store.ticketsOf(res.ID)[0].Code

	got, err := f.svc.Tickets.CheckIn(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, got.Status)
	assert.True(t, got.CheckedIn)

	again, err := f.svc.Tickets.CheckIn(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, model.TicketActive, f.store.ticketsOf(res.ID)[1].Status)

	_, err = f.svc.Tickets.CheckIn(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssuer_CheckInCanceled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.store.addEvent(10, 10, "10.00")
	res := f.hold(t, ev.ID, 1)
	f.pay(t, res.ID)
	_, err := f.svc.Reservations.Cancel(ctx, res.ID)
	require.NoError(t, err)

	_, err = f.svc.Tickets.CheckIn(ctx, f.store.ticketsOf(res.ID)[0].Code)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestIssuer_VoidForReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.store.addEvent(10, 10, "10.00")
	res := f.hold(t, ev.ID, 3)
	f.pay(t, res.ID)
	_, err := f.svc.Tickets.CheckIn(ctx, f.store.ticketsOf(res.ID)[2].Code)
	require.NoError(t, err)

	n, err := f.svc.Tickets.VoidForReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.svc.Tickets.VoidForReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIssuer_Reads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.store.addEvent(10, 10, "10.00")
	res := f.hold(t, ev.ID, 2)
	f.clock.Advance(time.Second)
	f.pay(t, res.ID)
	tickets := f.store.ticketsOf(res.ID)

	got, err := f.svc.Tickets.GetByCode(ctx, tickets[1].Code)
	require.NoError(t, err)
	assert.Equal(t, tickets[1], got)
	assert.Equal(t, start.Add(time.Second), got.CreatedAt)

	got, err = f.svc.Tickets.GetByID(ctx, tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, tickets[0], got)

	list, err := f.svc.Tickets.ListByReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, tickets, list)

	_, err = f.svc.Tickets.GetByCode(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Tickets.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
