package model

import "github.com/shopspring/decimal"

// Event is the seat inventory of a bookable event.  Only the seat
// counters matter to the booking workflow; catalogue attributes such as
// category, venue or schedule live with the event service.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name, carried for logs and events.
//  TotalCapacity  – number of seats the event can ever sell.
//  AvailableSeats – seats not held by a HELD or PAID reservation.
//  PriceBase      – price of a single seat.
type Event struct {
	ID             uint64          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	TotalCapacity  int             `db:"total_capacity" json:"total_capacity"`
	AvailableSeats int             `db:"available_seats" json:"available_seats"`
	PriceBase      decimal.Decimal `db:"price_base" json:"price_base"`
}
