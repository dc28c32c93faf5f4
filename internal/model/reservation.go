package model

import "time"

// ReservationStatus is the state of a reservation in the booking workflow.
type ReservationStatus string

const (
	// ReservationHeld means seats are taken from inventory but payment has
	// not been confirmed.  Held reservations expire at ExpiresAt.
	ReservationHeld ReservationStatus = "HELD"
	// ReservationPaid means payment succeeded; tickets exist.
	ReservationPaid ReservationStatus = "PAID"
	// ReservationCancelled is terminal.  Seats were returned to inventory.
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Valid reports whether s is one of the known reservation states.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationHeld, ReservationPaid, ReservationCancelled:
		return true
	}
	return false
}

// Reservation records a user's claim on a number of seats for an event.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event whose inventory the seats were taken from.
//  UserID    – user who made the reservation.
//  Seats     – number of seats, at least one.
//  Status    – HELD, PAID or CANCELLED.
//  CreatedAt – creation timestamp.
//  ExpiresAt – when a HELD reservation stops being payable.
//  UpdatedAt – last status change.
type Reservation struct {
	ID        uint64            `db:"id" json:"id"`
	EventID   uint64            `db:"event_id" json:"event_id"`
	UserID    uint64            `db:"user_id" json:"user_id"`
	Seats     int               `db:"seats" json:"seats"`
	Status    ReservationStatus `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	ExpiresAt time.Time         `db:"expires_at" json:"expires_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// Expired reports whether a HELD reservation is past its expiry at now.
// Reservations in any other state never expire.
func (r Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationHeld && !now.Before(r.ExpiresAt)
}
