package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/eventix-booking/internal/clock"
	"github.com/iliyamo/eventix-booking/internal/metrics"
	"github.com/iliyamo/eventix-booking/internal/model"
	"github.com/iliyamo/eventix-booking/internal/queue"
	"github.com/iliyamo/eventix-booking/internal/repository"
)

// Cancellation triggers, reported in metrics and events.
const (
	TriggerRequest = "request"
	TriggerExpiry  = "expiry"
)

// Manager owns the reservation state machine:
//
//	HELD -> PAID       (MarkPaid, called by the payment processor)
//	HELD -> CANCELLED  (Cancel, Expire)
//	PAID -> CANCELLED  (Cancel)
//
// CANCELLED is terminal.  Seats are taken from the ledger when a
// reservation is created and given back when it is cancelled, whichever
// state it was cancelled from.
type Manager struct {
	tx           Transactor
	events       EventStore
	reservations ReservationStore
	payments     PaymentStore
	ledger       *Ledger
	issuer       *Issuer
	publisher    EventPublisher
	clock        clock.Clock
	logger       logrus.FieldLogger
	holdTTL      time.Duration
}

// Create holds seats for a user.  The seats are reserved, the HELD
// reservation is stored with its expiry and a PENDING payment for
// price_base * seats is attached, all in one transaction.  When the event
// lacks capacity nothing is persisted.
func (m *Manager) Create(ctx context.Context, userID, eventID uint64, seats int) (model.Reservation, error) {
	if seats < 1 {
		metrics.ReservationsRejected.WithLabelValues("validation").Inc()
		return model.Reservation{}, fmt.Errorf("seats must be at least 1, got %d: %w", seats, ErrValidation)
	}

	var res model.Reservation
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.ledger.Reserve(ctx, eventID, seats); err != nil {
			return err
		}
		ev, err := m.events.GetByID(ctx, eventID)
		if err != nil {
			return notFound(err, "event", eventID)
		}

		now := m.clock.Now()
		res = model.Reservation{
			EventID:   eventID,
			UserID:    userID,
			Seats:     seats,
			Status:    model.ReservationHeld,
			CreatedAt: now,
			ExpiresAt: now.Add(m.holdTTL),
			UpdatedAt: now,
		}
		if err := m.reservations.Create(ctx, &res); err != nil {
			return fmt.Errorf("creating reservation: %w", err)
		}

		pending := model.Payment{
			ReservationID: res.ID,
			Amount:        ev.PriceBase.Mul(decimal.NewFromInt(int64(seats))),
			Status:        model.PaymentPending,
		}
		if pending.Amount.GreaterThan(MaxAmount) {
			return fmt.Errorf("total %s for %d seats exceeds %s: %w", pending.Amount, seats, MaxAmount, ErrValidation)
		}
		if err := m.payments.Create(ctx, &pending); err != nil {
			return fmt.Errorf("creating pending payment: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.ReservationsRejected.WithLabelValues(kind(err)).Inc()
		return model.Reservation{}, err
	}

	metrics.ReservationsCreated.Inc()
	m.logger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"event_id":       eventID,
		"user_id":        userID,
		"seats":          seats,
	}).Info("reservation held")
	return res, nil
}

// Cancel moves a reservation to CANCELLED, returning its seats to the
// event, failing its payment and voiding its active tickets.  Cancelling
// an already cancelled reservation returns it unchanged.
func (m *Manager) Cancel(ctx context.Context, id uint64) (model.Reservation, error) {
	res, _, err := m.cancel(ctx, id, TriggerRequest)
	return res, err
}

// Expire cancels a reservation only if, under its row lock, it is still
// HELD and past its expiry.  It reports whether it cancelled anything.  A
// reservation paid after the sweep listed it is left alone.
func (m *Manager) Expire(ctx context.Context, id uint64) (bool, error) {
	_, changed, err := m.cancel(ctx, id, TriggerExpiry)
	return changed, err
}

func (m *Manager) cancel(ctx context.Context, id uint64, trigger string) (model.Reservation, bool, error) {
	var (
		res     model.Reservation
		prev    model.ReservationStatus
		voided  int64
		changed bool
	)
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := m.reservations.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "reservation", id)
		}
		res = r
		if r.Status == model.ReservationCancelled {
			return nil
		}
		now := m.clock.Now()
		if trigger == TriggerExpiry && !r.Expired(now) {
			return nil
		}

		if err := m.ledger.Release(ctx, r.EventID, r.Seats); err != nil {
			return err
		}
		if err := m.reservations.UpdateStatus(ctx, id, model.ReservationCancelled, now); err != nil {
			return fmt.Errorf("cancelling reservation %d: %w", id, err)
		}
		if err := m.failPayment(ctx, id); err != nil {
			return err
		}
		if voided, err = m.issuer.VoidForReservation(ctx, id); err != nil {
			return err
		}

		prev = r.Status
		res.Status = model.ReservationCancelled
		res.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return model.Reservation{}, false, err
	}
	if !changed {
		return res, false, nil
	}

	metrics.ReservationsCancelled.WithLabelValues(string(prev), trigger).Inc()
	log := m.logger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"event_id":       res.EventID,
		"user_id":        res.UserID,
		"from":           prev,
		"trigger":        trigger,
	})
	log.Info("reservation cancelled")

	pctx, cancel := publishCtx(ctx)
	defer cancel()
	if err := m.publisher.PublishReservationCancelled(pctx, queue.ReservationCancelledEvent{
		ReservationID:  res.ID,
		UserID:         res.UserID,
		EventID:        res.EventID,
		Seats:          res.Seats,
		PreviousStatus: string(prev),
		Trigger:        trigger,
		TicketsVoided:  voided,
		CancelledAt:    res.UpdatedAt.Format(time.RFC3339),
	}); err != nil {
		log.WithError(err).Warn("publishing reservation.cancelled failed")
	}
	return res, true, nil
}

// failPayment marks the reservation's payment FAILED.  A reservation
// without a payment row is not an error.
func (m *Manager) failPayment(ctx context.Context, reservationID uint64) error {
	p, err := m.payments.GetByReservationID(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading payment of reservation %d: %w", reservationID, err)
	}
	if p.Status == model.PaymentFailed {
		return nil
	}
	p.Status = model.PaymentFailed
	if err := m.payments.Update(ctx, p); err != nil {
		return fmt.Errorf("failing payment %d: %w", p.ID, err)
	}
	return nil
}

// MarkPaid is the only HELD -> PAID transition.  It is a no-op on a PAID
// reservation and fails with ErrInvalidState on a cancelled one.  Seats
// were already taken at hold time, so inventory is not touched.
func (m *Manager) MarkPaid(ctx context.Context, id uint64) (model.Reservation, error) {
	var res model.Reservation
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := m.reservations.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "reservation", id)
		}
		res = r
		switch r.Status {
		case model.ReservationPaid:
			return nil
		case model.ReservationCancelled:
			return fmt.Errorf("reservation %d is cancelled: %w", id, ErrInvalidState)
		}
		now := m.clock.Now()
		if err := m.reservations.UpdateStatus(ctx, id, model.ReservationPaid, now); err != nil {
			return fmt.Errorf("marking reservation %d paid: %w", id, err)
		}
		res.Status = model.ReservationPaid
		res.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// Get returns a reservation by ID.
func (m *Manager) Get(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := m.reservations.GetByID(ctx, id)
	if err != nil {
		return model.Reservation{}, notFound(err, "reservation", id)
	}
	return res, nil
}

// ListByUser returns a user's reservations, newest first.
func (m *Manager) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	out, err := m.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing reservations of user %d: %w", userID, err)
	}
	return out, nil
}

// ListByEventAndStatus returns an event's reservations in one state.
func (m *Manager) ListByEventAndStatus(ctx context.Context, eventID uint64, status model.ReservationStatus) ([]model.Reservation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown reservation status %q: %w", status, ErrValidation)
	}
	out, err := m.reservations.ListByEventAndStatus(ctx, eventID, status)
	if err != nil {
		return nil, fmt.Errorf("listing reservations of event %d: %w", eventID, err)
	}
	return out, nil
}

// ListExpired returns up to limit IDs of HELD reservations whose hold
// has run out at the current time.
func (m *Manager) ListExpired(ctx context.Context, limit int) ([]uint64, error) {
	ids, err := m.reservations.ListExpiredHeld(ctx, m.clock.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing expired reservations: %w", err)
	}
	return ids, nil
}
