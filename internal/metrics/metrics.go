// Package metrics declares the Prometheus collectors of the booking
// workflow.  Collectors register with the default registry on import and
// are served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_reservations_created_total",
			Help: "Reservations created in HELD state",
		},
	)

	ReservationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_reservations_rejected_total",
			Help: "Reservation attempts rejected before anything was persisted",
		},
		[]string{"reason"},
	)

	ReservationsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_reservations_cancelled_total",
			Help: "Reservations moved to CANCELLED, by the state they left and the trigger",
		},
		[]string{"from", "trigger"},
	)

	Payments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_payments_total",
			Help: "Pay calls that succeeded, split into first applications and idempotent replays",
		},
		[]string{"outcome"},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_tickets_issued_total",
			Help: "Tickets generated for paid reservations",
		},
	)

	TicketCodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_ticket_code_collisions_total",
			Help: "Generated ticket codes discarded because they were already taken",
		},
	)

	TicketsCheckedIn = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_tickets_checked_in_total",
			Help: "Tickets moved from ACTIVE to USED",
		},
	)

	ConsistencyViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_consistency_violations_total",
			Help: "Seat releases that would have pushed available seats above capacity",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_events_published_total",
			Help: "Domain events handed to the broker",
		},
		[]string{"queue", "status"},
	)
)
