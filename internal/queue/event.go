// Package queue defines message payloads exchanged over the message broker.
package queue

const (
	// ReservationPaidQueue receives an event once per reservation when its
	// payment is first applied.
	ReservationPaidQueue = "reservation.paid"
	// ReservationCancelledQueue receives an event whenever a reservation
	// leaves HELD or PAID for CANCELLED.
	ReservationCancelledQueue = "reservation.cancelled"
)

// ReservationPaidEvent is published after the payment transaction commits.
// It contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type ReservationPaidEvent struct {
	ReservationID uint64   `json:"reservation_id"`
	PaymentID     uint64   `json:"payment_id"`
	UserID        uint64   `json:"user_id"`
	EventID       uint64   `json:"event_id"`
	Seats         int      `json:"seats"`
	Amount        string   `json:"amount"`
	Method        string   `json:"method"`
	TicketCodes   []string `json:"ticket_codes"`
	PaidAt        string   `json:"paid_at"`
}

// ReservationCancelledEvent is published after a cancellation commits.
// Trigger is "request" for a caller-initiated cancel and "expiry" for the
// hold sweep.
type ReservationCancelledEvent struct {
	ReservationID  uint64 `json:"reservation_id"`
	UserID         uint64 `json:"user_id"`
	EventID        uint64 `json:"event_id"`
	Seats          int    `json:"seats"`
	PreviousStatus string `json:"previous_status"`
	Trigger        string `json:"trigger"`
	TicketsVoided  int64  `json:"tickets_voided"`
	CancelledAt    string `json:"cancelled_at"`
}
