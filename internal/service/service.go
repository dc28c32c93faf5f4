// Package service implements the booking workflow: seat inventory,
// reservations, payments and tickets.  Persistence is reached through the
// store interfaces below; every mutating operation runs as a single
// transaction opened through the Transactor.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/eventix-booking/internal/clock"
	"github.com/iliyamo/eventix-booking/internal/model"
	"github.com/iliyamo/eventix-booking/internal/queue"
)

// DefaultHoldTTL is how long a HELD reservation stays payable.
const DefaultHoldTTL = 30 * time.Minute

// Transactor runs fn as one unit of work.  Nested calls join the
// surrounding transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventStore interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Event, error)
	UpdateAvailableSeats(ctx context.Context, id uint64, available int) error
}

type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus, at time.Time) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListByEventAndStatus(ctx context.Context, eventID uint64, status model.ReservationStatus) ([]model.Reservation, error)
	ListExpiredHeld(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	Update(ctx context.Context, p model.Payment) error
	GetByID(ctx context.Context, id uint64) (model.Payment, error)
	GetByReservationID(ctx context.Context, reservationID uint64) (model.Payment, error)
	List(ctx context.Context) ([]model.Payment, error)
	Delete(ctx context.Context, id uint64) error
}

type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Ticket, error)
	GetByCode(ctx context.Context, code string) (model.Ticket, error)
	GetByID(ctx context.Context, id uint64) (model.Ticket, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateStatusByReservation(ctx context.Context, reservationID uint64, from, to model.TicketStatus) (int64, error)
	MarkUsed(ctx context.Context, id uint64) (bool, error)
}

// EventPublisher delivers booking events after their transaction commits.
// Failures are logged by the caller and never undo the commit.
type EventPublisher interface {
	PublishReservationPaid(ctx context.Context, ev queue.ReservationPaidEvent) error
	PublishReservationCancelled(ctx context.Context, ev queue.ReservationCancelledEvent) error
}

// Deps collects the collaborators of the booking services.  Publisher,
// Clock, Codes and Logger are optional.
type Deps struct {
	Tx           Transactor
	Events       EventStore
	Reservations ReservationStore
	Payments     PaymentStore
	Tickets      TicketStore

	Publisher EventPublisher
	Clock     clock.Clock
	Codes     CodeGenerator
	Logger    logrus.FieldLogger

	// HoldTTL defaults to DefaultHoldTTL when zero.
	HoldTTL time.Duration
}

// Services bundles the four components wired to the same store.
type Services struct {
	Ledger       *Ledger
	Reservations *Manager
	Payments     *Processor
	Tickets      *Issuer
}

// New wires the booking components together.
func New(d Deps) *Services {
	if d.Publisher == nil {
		d.Publisher = queue.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Codes == nil {
		d.Codes = NewCodeGenerator()
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.HoldTTL <= 0 {
		d.HoldTTL = DefaultHoldTTL
	}

	ledger := &Ledger{tx: d.Tx, events: d.Events, logger: d.Logger}
	issuer := &Issuer{
		tx:           d.Tx,
		reservations: d.Reservations,
		tickets:      d.Tickets,
		codes:        d.Codes,
		clock:        d.Clock,
		logger:       d.Logger,
	}
	manager := &Manager{
		tx:           d.Tx,
		events:       d.Events,
		reservations: d.Reservations,
		payments:     d.Payments,
		ledger:       ledger,
		issuer:       issuer,
		publisher:    d.Publisher,
		clock:        d.Clock,
		logger:       d.Logger,
		holdTTL:      d.HoldTTL,
	}
	processor := &Processor{
		tx:           d.Tx,
		reservations: d.Reservations,
		payments:     d.Payments,
		manager:      manager,
		issuer:       issuer,
		publisher:    d.Publisher,
		clock:        d.Clock,
		logger:       d.Logger,
	}
	return &Services{Ledger: ledger, Reservations: manager, Payments: processor, Tickets: issuer}
}

// publishCtx detaches publishing from request cancellation while keeping
// a bound on how long the broker may take.
func publishCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}
