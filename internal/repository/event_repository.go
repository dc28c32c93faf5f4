package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/eventix-booking/internal/model"
)

// EventRepo provides access to the seat counters of the events table.
// Catalogue columns are owned elsewhere; this repository only reads the
// fields the booking workflow needs and only ever writes available_seats.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, name, total_capacity, available_seats, price_base`

// GetByID returns the event with the given ID without locking it.  It
// returns ErrNotFound when no such event exists.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	var ev model.Event
	err := conn(ctx, r.db).GetContext(ctx, &ev, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("selecting event %d: %w", id, err)
	}
	return ev, nil
}

// GetForUpdate reads the event and takes a row lock on it for the rest of
// the surrounding transaction.  Concurrent reservers of the same event
// queue up on this lock; other events are unaffected.  It must be called
// inside Store.WithTx, otherwise the lock is released immediately.
func (r *EventRepo) GetForUpdate(ctx context.Context, id uint64) (model.Event, error) {
	var ev model.Event
	err := conn(ctx, r.db).GetContext(ctx, &ev, `SELECT `+eventColumns+` FROM events WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("locking event %d: %w", id, err)
	}
	return ev, nil
}

// UpdateAvailableSeats overwrites available_seats for the event.  The
// caller is expected to hold the row lock from GetForUpdate.
func (r *EventRepo) UpdateAvailableSeats(ctx context.Context, id uint64, available int) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE events SET available_seats = ? WHERE id = ?`, available, id)
	if err != nil {
		return fmt.Errorf("updating available seats of event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	// clientFoundRows is set on the DSN, so an unchanged row still counts.
	if n != 1 {
		return ErrNotFound
	}
	return nil
}
