package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/eventix-booking/internal/model"
)

// ReservationRepo provides persistence for reservations.  All timestamp
// fields are written by the caller in UTC; the repository never relies on
// database defaults so that an injected clock controls them.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, event_id, user_id, seats, status, created_at, expires_at, updated_at`

// Create inserts a new reservation and populates its generated ID.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (event_id, user_id, seats, status, created_at, expires_at, updated_at)
			   VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := conn(ctx, r.db).ExecContext(ctx, q,
		res.EventID, res.UserID, res.Seats, res.Status, res.CreatedAt, res.ExpiresAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting reservation id: %w", err)
	}
	res.ID = uint64(id)
	return nil
}

// GetByID returns a reservation without locking it, or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
}

// GetForUpdate reads a reservation and locks its row until the
// surrounding transaction ends.  Payment, cancellation and ticket
// issuance all take this lock first, which makes their "already paid" and
// "already ticketed" checks race free.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
}

func (r *ReservationRepo) get(ctx context.Context, q string, id uint64) (model.Reservation, error) {
	var res model.Reservation
	err := conn(ctx, r.db).GetContext(ctx, &res, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("selecting reservation %d: %w", id, err)
	}
	return res, nil
}

// UpdateStatus sets the status and updated_at of a reservation.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus, at time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`, status, at, id)
	if err != nil {
		return fmt.Errorf("updating reservation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns all reservations of a user, newest first.  An
// empty slice is returned when the user has none.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	out := []model.Reservation{}
	err := conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing reservations of user %d: %w", userID, err)
	}
	return out, nil
}

// ListByEventAndStatus returns the reservations of an event in a given
// state, oldest first.
func (r *ReservationRepo) ListByEventAndStatus(ctx context.Context, eventID uint64, status model.ReservationStatus) ([]model.Reservation, error) {
	out := []model.Reservation{}
	err := conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT `+reservationColumns+` FROM reservations WHERE event_id = ? AND status = ? ORDER BY created_at, id`, eventID, status)
	if err != nil {
		return nil, fmt.Errorf("listing reservations of event %d: %w", eventID, err)
	}
	return out, nil
}

// ListExpiredHeld returns up to limit IDs of HELD reservations whose
// expires_at is at or before now, oldest expiry first.  The rows are not
// locked; the sweep re-checks each one under its own lock.
func (r *ReservationRepo) ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	ids := []uint64{}
	err := conn(ctx, r.db).SelectContext(ctx, &ids,
		`SELECT id FROM reservations WHERE status = ? AND expires_at <= ? ORDER BY expires_at, id LIMIT ?`,
		model.ReservationHeld, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expired reservations: %w", err)
	}
	return ids, nil
}
