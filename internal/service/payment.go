package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/eventix-booking/internal/clock"
	"github.com/iliyamo/eventix-booking/internal/metrics"
	"github.com/iliyamo/eventix-booking/internal/model"
	"github.com/iliyamo/eventix-booking/internal/queue"
	"github.com/iliyamo/eventix-booking/internal/repository"
)

// Processor applies payments to reservations.  A reservation has at most
// one effective payment: paying again after success returns the stored
// payment and changes nothing.
type Processor struct {
	tx           Transactor
	reservations ReservationStore
	payments     PaymentStore
	manager      *Manager
	issuer       *Issuer
	publisher    EventPublisher
	clock        clock.Clock
	logger       logrus.FieldLogger
}

// MaxAmount is the largest value a DECIMAL(10,2) amount column holds.
var MaxAmount = decimal.RequireFromString("99999999.99")

// ValidateAmount accepts positive amounts with at most two decimals that
// fit the amount column.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s: %w", amount, ErrValidation)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount %s exceeds %s: %w", amount, MaxAmount, ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("amount %s has more than two decimals: %w", amount, ErrValidation)
	}
	return nil
}

// Pay records a successful payment and moves the reservation to PAID.
//
// The payment and the state change commit together while the
// reservation row is locked, so concurrent calls for one reservation
// apply it once.  Tickets are issued afterwards in their own transaction;
// replays call the issuer too, which completes an issuance that failed
// earlier without creating a second batch.  If issuance fails the applied
// payment is returned together with the error.
func (p *Processor) Pay(ctx context.Context, reservationID uint64, amount decimal.Decimal, method model.PaymentMethod) (model.Payment, error) {
	if err := ValidateAmount(amount); err != nil {
		return model.Payment{}, err
	}
	if !method.Valid() {
		return model.Payment{}, fmt.Errorf("unknown payment method %q: %w", method, ErrValidation)
	}

	var (
		pay    model.Payment
		res    model.Reservation
		replay bool
	)
	err := p.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := p.reservations.GetForUpdate(ctx, reservationID)
		if err != nil {
			return notFound(err, "reservation", reservationID)
		}
		if r.Status == model.ReservationCancelled {
			return fmt.Errorf("reservation %d is cancelled: %w", reservationID, ErrInvalidState)
		}

		existing, err := p.payments.GetByReservationID(ctx, reservationID)
		found := err == nil
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("loading payment of reservation %d: %w", reservationID, err)
		}
		if found && existing.Status == model.PaymentSuccess {
			pay, res, replay = existing, r, true
			return nil
		}

		now := p.clock.Now()
		if r.Expired(now) {
			return fmt.Errorf("hold of reservation %d expired at %s: %w",
				reservationID, r.ExpiresAt.Format(time.RFC3339), ErrInvalidState)
		}

		m := method
		paidAt := now
		if found {
			pay = existing
		} else {
			pay = model.Payment{ReservationID: reservationID}
		}
		pay.Amount = amount
		pay.Status = model.PaymentSuccess
		pay.Method = &m
		pay.PaidAt = &paidAt

		if found {
			err = p.payments.Update(ctx, pay)
		} else {
			err = p.payments.Create(ctx, &pay)
		}
		if err != nil {
			return fmt.Errorf("storing payment of reservation %d: %w", reservationID, err)
		}

		res, err = p.manager.MarkPaid(ctx, reservationID)
		return err
	})
	if err != nil {
		return model.Payment{}, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"payment_id":     pay.ID,
		"user_id":        res.UserID,
		"event_id":       res.EventID,
	})

	tickets, issued, err := p.issuer.issue(ctx, reservationID)
	if err != nil {
		log.WithError(err).Error("ticket issuance after payment failed")
		return pay, fmt.Errorf("issuing tickets for reservation %d: %w", reservationID, err)
	}

	if replay {
		metrics.Payments.WithLabelValues("replay").Inc()
	} else {
		metrics.Payments.WithLabelValues("applied").Inc()
		log.WithField("amount", pay.Amount.StringFixed(2)).Info("payment applied")
	}
	// The paid event goes out with the ticket batch, which a replay
	// creates when an earlier issuance failed.
	if replay && !issued {
		return pay, nil
	}

	codes := make([]string, len(tickets))
	for i, t := range tickets {
		codes[i] = t.Code
	}
	pctx, cancel := publishCtx(ctx)
	defer cancel()
	if err := p.publisher.PublishReservationPaid(pctx, queue.ReservationPaidEvent{
		ReservationID: reservationID,
		PaymentID:     pay.ID,
		UserID:        res.UserID,
		EventID:       res.EventID,
		Seats:         res.Seats,
		Amount:        pay.Amount.StringFixed(2),
		Method:        methodOf(pay),
		TicketCodes:   codes,
		PaidAt:        paidAtOf(pay),
	}); err != nil {
		log.WithError(err).Warn("publishing reservation.paid failed")
	}
	return pay, nil
}

func methodOf(p model.Payment) string {
	if p.Method == nil {
		return ""
	}
	return string(*p.Method)
}

func paidAtOf(p model.Payment) string {
	if p.PaidAt == nil {
		return ""
	}
	return p.PaidAt.Format(time.RFC3339)
}

// GetByReservationID returns the payment attached to a reservation.
func (p *Processor) GetByReservationID(ctx context.Context, reservationID uint64) (model.Payment, error) {
	pay, err := p.payments.GetByReservationID(ctx, reservationID)
	if err != nil {
		return model.Payment{}, notFound(err, "payment of reservation", reservationID)
	}
	return pay, nil
}

// GetByID returns a payment by ID.
func (p *Processor) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	pay, err := p.payments.GetByID(ctx, id)
	if err != nil {
		return model.Payment{}, notFound(err, "payment", id)
	}
	return pay, nil
}

// List returns all payments.
func (p *Processor) List(ctx context.Context) ([]model.Payment, error) {
	out, err := p.payments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	return out, nil
}

// Delete removes a payment record.  Reservation, inventory and tickets are
// left as they are.
func (p *Processor) Delete(ctx context.Context, id uint64) error {
	if err := p.payments.Delete(ctx, id); err != nil {
		return notFound(err, "payment", id)
	}
	p.logger.WithField("payment_id", id).Warn("payment deleted")
	return nil
}
