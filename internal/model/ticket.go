package model

import "time"

// TicketStatus is the lifecycle state of an issued ticket.
type TicketStatus string

const (
	TicketActive   TicketStatus = "ACTIVE"   // valid, not yet used
	TicketUsed     TicketStatus = "USED"     // checked in at the venue
	TicketCanceled TicketStatus = "CANCELED" // reservation was cancelled
)

// Ticket is one admission issued for a paid reservation.  Code is the
// human-presentable identifier scanned at check-in and is globally unique.
type Ticket struct {
	ID            uint64       `db:"id" json:"id"`
	ReservationID uint64       `db:"reservation_id" json:"reservation_id"`
	Code          string       `db:"ticket_code" json:"ticket_code"`
	CheckedIn     bool         `db:"checked_in" json:"checked_in"`
	Status        TicketStatus `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}
