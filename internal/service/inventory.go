package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/eventix-booking/internal/metrics"
	"github.com/iliyamo/eventix-booking/internal/model"
)

// Ledger is the only writer of an event's available_seats.  Each call
// locks the event row, so concurrent callers on one event are serialized
// while other events proceed in parallel.  Calls made inside a
// transaction join it; a failure aborts the whole unit of work.
type Ledger struct {
	tx     Transactor
	events EventStore
	logger logrus.FieldLogger
}

// Reserve takes seats out of the event's inventory.  It fails with
// ErrCapacityExceeded, without changing anything, when fewer than seats
// are available.
func (l *Ledger) Reserve(ctx context.Context, eventID uint64, seats int) error {
	if seats < 1 {
		return fmt.Errorf("seats must be at least 1, got %d: %w", seats, ErrValidation)
	}
	return l.tx.WithTx(ctx, func(ctx context.Context) error {
		ev, err := l.events.GetForUpdate(ctx, eventID)
		if err != nil {
			return notFound(err, "event", eventID)
		}
		if ev.AvailableSeats < seats {
			return fmt.Errorf("event %d has %d seats left, %d requested: %w",
				eventID, ev.AvailableSeats, seats, ErrCapacityExceeded)
		}
		if err := l.events.UpdateAvailableSeats(ctx, eventID, ev.AvailableSeats-seats); err != nil {
			return fmt.Errorf("reserving seats of event %d: %w", eventID, err)
		}
		return nil
	})
}

// Release returns seats to the event's inventory.  A release that would
// leave more seats available than the event has in total means the
// counters no longer match the reservations; it fails with
// ErrConsistencyViolation and is never clamped.
func (l *Ledger) Release(ctx context.Context, eventID uint64, seats int) error {
	if seats < 1 {
		return fmt.Errorf("seats must be at least 1, got %d: %w", seats, ErrValidation)
	}
	return l.tx.WithTx(ctx, func(ctx context.Context) error {
		ev, err := l.events.GetForUpdate(ctx, eventID)
		if err != nil {
			return notFound(err, "event", eventID)
		}
		next := ev.AvailableSeats + seats
		if next > ev.TotalCapacity {
			metrics.ConsistencyViolations.Inc()
			l.logger.WithFields(logrus.Fields{
				"integrity":       "violation",
				"event_id":        eventID,
				"available_seats": ev.AvailableSeats,
				"total_capacity":  ev.TotalCapacity,
				"released":        seats,
			}).Error("seat release exceeds event capacity")
			return fmt.Errorf("releasing %d seats of event %d (available %d, capacity %d): %w",
				seats, eventID, ev.AvailableSeats, ev.TotalCapacity, ErrConsistencyViolation)
		}
		if err := l.events.UpdateAvailableSeats(ctx, eventID, next); err != nil {
			return fmt.Errorf("releasing seats of event %d: %w", eventID, err)
		}
		return nil
	})
}

// Availability returns the event's current counters without locking.
func (l *Ledger) Availability(ctx context.Context, eventID uint64) (model.Event, error) {
	ev, err := l.events.GetByID(ctx, eventID)
	if err != nil {
		return model.Event{}, notFound(err, "event", eventID)
	}
	return ev, nil
}
