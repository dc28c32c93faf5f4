package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/eventix-booking/internal/model"
	"github.com/iliyamo/eventix-booking/internal/queue"
	"github.com/iliyamo/eventix-booking/internal/repository"
)

// memStore is an in-memory store whose transactions are fully serialized
// and rolled back on error.  Calls outside a transaction behave as
// single-statement transactions.
type memStore struct {
	mu sync.Mutex

	events       map[uint64]model.Event
	reservations map[uint64]model.Reservation
	payments     map[uint64]model.Payment
	tickets      map[uint64]model.Ticket
	nextID       uint64

	// failTicketCreates makes the next n ticket inserts fail.
	failTicketCreates int
	// failPaymentCreates makes the next n payment inserts fail.
	failPaymentCreates int
	// blindCodeCheck makes CodeExists always report false so that
	// collisions surface as ErrDuplicate on insert.
	blindCodeCheck bool
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		events:       map[uint64]model.Event{},
		reservations: map[uint64]model.Reservation{},
		payments:     map[uint64]model.Payment{},
		tickets:      map[uint64]model.Ticket{},
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	events := cloneMap(s.events)
	reservations := cloneMap(s.reservations)
	payments := cloneMap(s.payments)
	tickets := cloneMap(s.tickets)
	nextID := s.nextID

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.events, s.reservations, s.payments, s.tickets, s.nextID = events, reservations, payments, tickets, nextID
		return err
	}
	return nil
}

// op runs fn holding the store lock unless ctx already carries a
// transaction, whose goroutine owns the lock.
func (s *memStore) op(ctx context.Context, fn func() error) error {
	if ctx.Value(memTxKey{}) == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn()
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func cloneMap[V any](m map[uint64]V) map[uint64]V {
	out := make(map[uint64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedValues[V any](m map[uint64]V, keep func(V) bool) []V {
	keys := make([]uint64, 0, len(m))
	for k, v := range m {
		if keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (s *memStore) addEvent(total, available int, price string) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := model.Event{
		ID:             s.id(),
		Name:           "event",
		TotalCapacity:  total,
		AvailableSeats: available,
		PriceBase:      mustDecimal(price),
	}
	s.events[ev.ID] = ev
	return ev
}

func (s *memStore) event(id uint64) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *memStore) reservation(id uint64) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id]
}

func (s *memStore) paymentsOf(reservationID uint64) []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.payments, func(p model.Payment) bool { return p.ReservationID == reservationID })
}

func (s *memStore) ticketsOf(reservationID uint64) []model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.tickets, func(t model.Ticket) bool { return t.ReservationID == reservationID })
}

// committedSeats sums the seats of HELD and PAID reservations of an event.
func (s *memStore) committedSeats(eventID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.EventID == eventID && r.Status != model.ReservationCancelled {
			n += r.Seats
		}
	}
	return n
}

type memEvents struct{ *memStore }

func (s memEvents) GetByID(ctx context.Context, id uint64) (ev model.Event, err error) {
	err = s.op(ctx, func() error {
		var ok bool
		if ev, ok = s.events[id]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
	return ev, err
}

func (s memEvents) GetForUpdate(ctx context.Context, id uint64) (model.Event, error) {
	return s.GetByID(ctx, id)
}

func (s memEvents) UpdateAvailableSeats(ctx context.Context, id uint64, available int) error {
	return s.op(ctx, func() error {
		ev, ok := s.events[id]
		if !ok {
			return repository.ErrNotFound
		}
		ev.AvailableSeats = available
		s.events[id] = ev
		return nil
	})
}

type memReservations struct{ *memStore }

func (s memReservations) Create(ctx context.Context, res *model.Reservation) error {
	return s.op(ctx, func() error {
		res.ID = s.id()
		s.reservations[res.ID] = *res
		return nil
	})
}

func (s memReservations) GetByID(ctx context.Context, id uint64) (res model.Reservation, err error) {
	err = s.op(ctx, func() error {
		var ok bool
		if res, ok = s.reservations[id]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
	return res, err
}

func (s memReservations) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return s.GetByID(ctx, id)
}

func (s memReservations) UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus, at time.Time) error {
	return s.op(ctx, func() error {
		res, ok := s.reservations[id]
		if !ok {
			return repository.ErrNotFound
		}
		res.Status = status
		res.UpdatedAt = at
		s.reservations[id] = res
		return nil
	})
}

func (s memReservations) ListByUser(ctx context.Context, userID uint64) (out []model.Reservation, err error) {
	err = s.op(ctx, func() error {
		out = sortedValues(s.reservations, func(r model.Reservation) bool { return r.UserID == userID })
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return nil
	})
	return out, err
}

func (s memReservations) ListByEventAndStatus(ctx context.Context, eventID uint64, status model.ReservationStatus) (out []model.Reservation, err error) {
	err = s.op(ctx, func() error {
		out = sortedValues(s.reservations, func(r model.Reservation) bool {
			return r.EventID == eventID && r.Status == status
		})
		return nil
	})
	return out, err
}

func (s memReservations) ListExpiredHeld(ctx context.Context, now time.Time, limit int) (ids []uint64, err error) {
	err = s.op(ctx, func() error {
		for _, r := range sortedValues(s.reservations, func(r model.Reservation) bool { return r.Expired(now) }) {
			if len(ids) == limit {
				break
			}
			ids = append(ids, r.ID)
		}
		return nil
	})
	return ids, err
}

type memPayments struct{ *memStore }

func (s memPayments) Create(ctx context.Context, p *model.Payment) error {
	return s.op(ctx, func() error {
		if s.failPaymentCreates > 0 {
			s.failPaymentCreates--
			return errors.New("payment insert failed")
		}
		for _, other := range s.payments {
			if other.ReservationID == p.ReservationID {
				return repository.ErrDuplicate
			}
		}
		p.ID = s.id()
		s.payments[p.ID] = *p
		return nil
	})
}

func (s memPayments) Update(ctx context.Context, p model.Payment) error {
	return s.op(ctx, func() error {
		if _, ok := s.payments[p.ID]; !ok {
			return repository.ErrNotFound
		}
		s.payments[p.ID] = p
		return nil
	})
}

func (s memPayments) GetByID(ctx context.Context, id uint64) (p model.Payment, err error) {
	err = s.op(ctx, func() error {
		var ok bool
		if p, ok = s.payments[id]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
	return p, err
}

func (s memPayments) GetByReservationID(ctx context.Context, reservationID uint64) (p model.Payment, err error) {
	err = s.op(ctx, func() error {
		for _, other := range s.payments {
			if other.ReservationID == reservationID {
				p = other
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return p, err
}

func (s memPayments) List(ctx context.Context) (out []model.Payment, err error) {
	err = s.op(ctx, func() error {
		out = sortedValues(s.payments, func(model.Payment) bool { return true })
		return nil
	})
	return out, err
}

func (s memPayments) Delete(ctx context.Context, id uint64) error {
	return s.op(ctx, func() error {
		if _, ok := s.payments[id]; !ok {
			return repository.ErrNotFound
		}
		delete(s.payments, id)
		return nil
	})
}

type memTickets struct{ *memStore }

func (s memTickets) codeTaken(code string) bool {
	for _, t := range s.tickets {
		if t.Code == code {
			return true
		}
	}
	return false
}

func (s memTickets) Create(ctx context.Context, t *model.Ticket) error {
	return s.op(ctx, func() error {
		if s.failTicketCreates > 0 {
			s.failTicketCreates--
			return errors.New("ticket insert failed")
		}
		if s.codeTaken(t.Code) {
			return repository.ErrDuplicate
		}
		t.ID = s.id()
		s.tickets[t.ID] = *t
		return nil
	})
}

func (s memTickets) ListByReservation(ctx context.Context, reservationID uint64) (out []model.Ticket, err error) {
	err = s.op(ctx, func() error {
		out = sortedValues(s.tickets, func(t model.Ticket) bool { return t.ReservationID == reservationID })
		return nil
	})
	return out, err
}

func (s memTickets) GetByCode(ctx context.Context, code string) (t model.Ticket, err error) {
	err = s.op(ctx, func() error {
		for _, other := range s.tickets {
			if other.Code == code {
				t = other
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return t, err
}

func (s memTickets) GetByID(ctx context.Context, id uint64) (t model.Ticket, err error) {
	err = s.op(ctx, func() error {
		var ok bool
		if t, ok = s.tickets[id]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
	return t, err
}

func (s memTickets) CodeExists(ctx context.Context, code string) (exists bool, err error) {
	err = s.op(ctx, func() error {
		exists = !s.blindCodeCheck && s.codeTaken(code)
		return nil
	})
	return exists, err
}

func (s memTickets) UpdateStatusByReservation(ctx context.Context, reservationID uint64, from, to model.TicketStatus) (n int64, err error) {
	err = s.op(ctx, func() error {
		for id, t := range s.tickets {
			if t.ReservationID == reservationID && t.Status == from {
				t.Status = to
				s.tickets[id] = t
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s memTickets) MarkUsed(ctx context.Context, id uint64) (changed bool, err error) {
	err = s.op(ctx, func() error {
		t, ok := s.tickets[id]
		if !ok || t.Status != model.TicketActive {
			return nil
		}
		t.Status = model.TicketUsed
		t.CheckedIn = true
		s.tickets[id] = t
		changed = true
		return nil
	})
	return changed, err
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu        sync.Mutex
	paid      []queue.ReservationPaidEvent
	cancelled []queue.ReservationCancelledEvent
	err       error
}

func (p *recordingPublisher) PublishReservationPaid(_ context.Context, ev queue.ReservationPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, ev)
	return p.err
}

func (p *recordingPublisher) PublishReservationCancelled(_ context.Context, ev queue.ReservationCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, ev)
	return p.err
}

func (p *recordingPublisher) counts() (paid, cancelled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paid), len(p.cancelled)
}

// sequenceCodes hands out fixed codes first, then falls back to the
// default generator.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

func (g *sequenceCodes) Generate(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return NewCodeGenerator().Generate(now)
	}
	c := g.codes[0]
	g.codes = g.codes[1:]
	return c
}
