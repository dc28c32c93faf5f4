package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of the single payment attached to a reservation.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	MethodCard   PaymentMethod = "CARD"
	MethodPayPal PaymentMethod = "PAYPAL"
	MethodWallet PaymentMethod = "WALLET"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodPayPal, MethodWallet:
		return true
	}
	return false
}

// Payment is the one payment row owned by a reservation.  It is created
// PENDING together with the reservation and moves to SUCCESS when the
// customer pays or to FAILED when the reservation is cancelled.
type Payment struct {
	ID            uint64          `db:"id" json:"id"`
	ReservationID uint64          `db:"reservation_id" json:"reservation_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Status        PaymentStatus   `db:"status" json:"status"`
	Method        *PaymentMethod  `db:"method" json:"method,omitempty"`   // nil until paid
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"` // nil until paid
}
