package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/eventix-booking/internal/model"
)

// PaymentRepo provides persistence for payments.  The payments table has
// a unique index on reservation_id, so a reservation never owns more than
// one payment row; a second insert fails with ErrDuplicate.
type PaymentRepo struct {
	db *sqlx.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, amount, status, method, paid_at`

// Create inserts a payment and populates its generated ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, amount, status, method, paid_at) VALUES (?, ?, ?, ?, ?)`
	result, err := conn(ctx, r.db).ExecContext(ctx, q, p.ReservationID, p.Amount, p.Status, p.Method, p.PaidAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting payment id: %w", err)
	}
	p.ID = uint64(id)
	return nil
}

// Update writes amount, status, method and paid_at of an existing payment.
func (r *PaymentRepo) Update(ctx context.Context, p model.Payment) error {
	const q = `UPDATE payments SET amount = ?, status = ?, method = ?, paid_at = ? WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, p.Amount, p.Status, p.Method, p.PaidAt, p.ID)
	if err != nil {
		return fmt.Errorf("updating payment %d: %w", p.ID, err)
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

// GetByID returns a payment or ErrNotFound.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}

// GetByReservationID returns the payment of a reservation or ErrNotFound.
func (r *PaymentRepo) GetByReservationID(ctx context.Context, reservationID uint64) (model.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reservation_id = ?`, reservationID)
}

func (r *PaymentRepo) get(ctx context.Context, q string, arg uint64) (model.Payment, error) {
	var p model.Payment
	err := conn(ctx, r.db).GetContext(ctx, &p, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, ErrNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("selecting payment: %w", err)
	}
	return p, nil
}

// List returns every payment ordered by ID.
func (r *PaymentRepo) List(ctx context.Context) ([]model.Payment, error) {
	out := []model.Payment{}
	if err := conn(ctx, r.db).SelectContext(ctx, &out, `SELECT `+paymentColumns+` FROM payments ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	return out, nil
}

// Delete removes a payment row.  It returns ErrNotFound when nothing was
// deleted.
func (r *PaymentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting payment %d: %w", id, err)
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
