package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/eventix-booking/internal/model"
)

// TicketRepo provides persistence for tickets.  ticket_code carries a
// unique index and reservation_id a secondary index, so lookups by code
// and by reservation never scan the table.
type TicketRepo struct {
	db *sqlx.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, reservation_id, ticket_code, checked_in, status, created_at`

// Create inserts a ticket and populates its generated ID.  A code that is
// already taken yields ErrDuplicate so the caller can pick another one.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (reservation_id, ticket_code, checked_in, status, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := conn(ctx, r.db).ExecContext(ctx, q, t.ReservationID, t.Code, t.CheckedIn, t.Status, t.CreatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting ticket: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting ticket id: %w", err)
	}
	t.ID = uint64(id)
	return nil
}

// ListByReservation returns the tickets of a reservation ordered by ID.
func (r *TicketRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT `+ticketColumns+` FROM tickets WHERE reservation_id = ? ORDER BY id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("listing tickets of reservation %d: %w", reservationID, err)
	}
	return out, nil
}

// GetByCode returns the ticket with the given code or ErrNotFound.
func (r *TicketRepo) GetByCode(ctx context.Context, code string) (model.Ticket, error) {
	var t model.Ticket
	err := conn(ctx, r.db).GetContext(ctx, &t, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, ErrNotFound
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("selecting ticket by code: %w", err)
	}
	return t, nil
}

// GetByID returns the ticket with the given ID or ErrNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	var t model.Ticket
	err := conn(ctx, r.db).GetContext(ctx, &t, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, ErrNotFound
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("selecting ticket %d: %w", id, err)
	}
	return t, nil
}

// CodeExists reports whether a ticket with the given code is stored.
func (r *TicketRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM tickets WHERE ticket_code = ?)`, code)
	if err != nil {
		return false, fmt.Errorf("checking ticket code: %w", err)
	}
	return exists, nil
}

// UpdateStatusByReservation moves every ticket of a reservation that is
// currently in state from to state to, and returns how many changed.
// Tickets in other states are left alone.
func (r *TicketRepo) UpdateStatusByReservation(ctx context.Context, reservationID uint64, from, to model.TicketStatus) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE reservation_id = ? AND status = ?`, to, reservationID, from)
	if err != nil {
		return 0, fmt.Errorf("updating tickets of reservation %d: %w", reservationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}

// MarkUsed checks in an ACTIVE ticket.  It reports whether the row
// changed; a ticket that is already USED or CANCELED is not touched.
func (r *TicketRepo) MarkUsed(ctx context.Context, id uint64) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE tickets SET status = ?, checked_in = TRUE WHERE id = ? AND status = ?`,
		model.TicketUsed, id, model.TicketActive)
	if err != nil {
		return false, fmt.Errorf("checking in ticket %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n == 1, nil
}
