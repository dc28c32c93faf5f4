package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/eventix-booking/internal/clock"
	"github.com/iliyamo/eventix-booking/internal/metrics"
	"github.com/iliyamo/eventix-booking/internal/model"
	"github.com/iliyamo/eventix-booking/internal/repository"
)

// maxCodeAttempts bounds how many candidate codes are tried per ticket.
const maxCodeAttempts = 10

// ErrCodeSpace is returned when no unused ticket code was found within
// maxCodeAttempts.
var ErrCodeSpace = errors.New("no unique ticket code available")

// Issuer creates the tickets of paid reservations and tracks their use.
// Issuance is idempotent: a reservation that already has tickets gets the
// same tickets back.
type Issuer struct {
	tx           Transactor
	reservations ReservationStore
	tickets      TicketStore
	codes        CodeGenerator
	clock        clock.Clock
	logger       logrus.FieldLogger
}

// IssueForReservation returns exactly Seats ACTIVE tickets for a PAID
// reservation, creating them on the first call.  The reservation row is
// locked for the duration, so concurrent calls produce one batch.
func (i *Issuer) IssueForReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error) {
	out, _, err := i.issue(ctx, reservationID)
	return out, err
}

// issue does the work of IssueForReservation and reports whether this
// call created the batch.
func (i *Issuer) issue(ctx context.Context, reservationID uint64) ([]model.Ticket, bool, error) {
	var (
		out     []model.Ticket
		created bool
	)
	err := i.tx.WithTx(ctx, func(ctx context.Context) error {
		res, err := i.reservations.GetForUpdate(ctx, reservationID)
		if err != nil {
			return notFound(err, "reservation", reservationID)
		}
		if res.Status != model.ReservationPaid {
			return fmt.Errorf("reservation %d is %s, tickets need PAID: %w", reservationID, res.Status, ErrInvalidState)
		}

		existing, err := i.tickets.ListByReservation(ctx, reservationID)
		if err != nil {
			return fmt.Errorf("listing tickets of reservation %d: %w", reservationID, err)
		}
		if len(existing) > 0 {
			out = existing
			return nil
		}

		now := i.clock.Now()
		out = make([]model.Ticket, 0, res.Seats)
		for n := 0; n < res.Seats; n++ {
			t, err := i.create(ctx, reservationID, now)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.TicketsIssued.Add(float64(len(out)))
		i.logger.WithFields(logrus.Fields{
			"reservation_id": reservationID,
			"tickets":        len(out),
		}).Info("tickets issued")
	}
	return out, created, nil
}

// create stores one ticket under a fresh code.  A candidate that is
// already taken, whether seen by the existence check or by the unique
// index, is replaced by a new one.
func (i *Issuer) create(ctx context.Context, reservationID uint64, now time.Time) (model.Ticket, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := i.codes.Generate(now)
		taken, err := i.tickets.CodeExists(ctx, code)
		if err != nil {
			return model.Ticket{}, err
		}
		if taken {
			metrics.TicketCodeCollisions.Inc()
			continue
		}

		t := model.Ticket{
			ReservationID: reservationID,
			Code:          code,
			CheckedIn:     false,
			Status:        model.TicketActive,
			CreatedAt:     now,
		}
		err = i.tickets.Create(ctx, &t)
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.TicketCodeCollisions.Inc()
			continue
		}
		if err != nil {
			return model.Ticket{}, fmt.Errorf("creating ticket: %w", err)
		}
		return t, nil
	}
	return model.Ticket{}, fmt.Errorf("reservation %d after %d attempts: %w", reservationID, maxCodeAttempts, ErrCodeSpace)
}

// VoidForReservation cancels the ACTIVE tickets of a reservation and
// returns how many were voided.  USED tickets keep their state.  It joins
// the caller's transaction.
func (i *Issuer) VoidForReservation(ctx context.Context, reservationID uint64) (int64, error) {
	n, err := i.tickets.UpdateStatusByReservation(ctx, reservationID, model.TicketActive, model.TicketCanceled)
	if err != nil {
		return 0, fmt.Errorf("voiding tickets of reservation %d: %w", reservationID, err)
	}
	return n, nil
}

// CheckIn marks a ticket USED.  Checking in a USED ticket again returns it
// unchanged; a CANCELED ticket fails with ErrInvalidState.
func (i *Issuer) CheckIn(ctx context.Context, code string) (model.Ticket, error) {
	t, err := i.tickets.GetByCode(ctx, code)
	if err != nil {
		return model.Ticket{}, notFound(err, "ticket", code)
	}

	switch t.Status {
	case model.TicketUsed:
		return t, nil
	case model.TicketCanceled:
		return model.Ticket{}, fmt.Errorf("ticket %s is canceled: %w", code, ErrInvalidState)
	}

	changed, err := i.tickets.MarkUsed(ctx, t.ID)
	if err != nil {
		return model.Ticket{}, err
	}
	if !changed {
		// Lost a race with another check-in or a cancellation.
		cur, err := i.tickets.GetByID(ctx, t.ID)
		if err != nil {
			return model.Ticket{}, notFound(err, "ticket", code)
		}
		if cur.Status == model.TicketUsed {
			return cur, nil
		}
		return model.Ticket{}, fmt.Errorf("ticket %s is %s: %w", code, cur.Status, ErrInvalidState)
	}

	metrics.TicketsCheckedIn.Inc()
	t.Status = model.TicketUsed
	t.CheckedIn = true
	i.logger.WithFields(logrus.Fields{
		"ticket_id":      t.ID,
		"reservation_id": t.ReservationID,
	}).Info("ticket checked in")
	return t, nil
}

// GetByCode returns a ticket by its code.
func (i *Issuer) GetByCode(ctx context.Context, code string) (model.Ticket, error) {
	t, err := i.tickets.GetByCode(ctx, code)
	if err != nil {
		return model.Ticket{}, notFound(err, "ticket", code)
	}
	return t, nil
}

// GetByID returns a ticket by ID.
func (i *Issuer) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	t, err := i.tickets.GetByID(ctx, id)
	if err != nil {
		return model.Ticket{}, notFound(err, "ticket", id)
	}
	return t, nil
}

// ListByReservation returns the tickets of a reservation.
func (i *Issuer) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error) {
	out, err := i.tickets.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("listing tickets of reservation %d: %w", reservationID, err)
	}
	return out, nil
}
