// Package worker runs the background jobs of the booking service.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Expirer is the part of the reservation manager the sweep needs.
type Expirer interface {
	ListExpired(ctx context.Context, limit int) ([]uint64, error)
	Expire(ctx context.Context, id uint64) (bool, error)
}

// ExpirySweep cancels HELD reservations whose hold ran out, returning
// their seats to inventory.  Each reservation is re-checked under its own
// lock by Expire, so a reservation paid after it was listed survives.
type ExpirySweep struct {
	expirer  Expirer
	interval time.Duration
	batch    int
	logger   logrus.FieldLogger
}

// NewExpirySweep returns a sweep that runs every interval and expires up
// to batch reservations per round.
func NewExpirySweep(expirer Expirer, interval time.Duration, batch int, logger logrus.FieldLogger) *ExpirySweep {
	return &ExpirySweep{expirer: expirer, interval: interval, batch: batch, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// It always returns ctx.Err().
func (s *ExpirySweep) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// drain repeats rounds while full batches come back.
func (s *ExpirySweep) drain(ctx context.Context) {
	for ctx.Err() == nil {
		listed, _ := s.Sweep(ctx)
		if listed < s.batch {
			return
		}
	}
}

// Sweep runs one round.  It returns how many reservations were listed as
// expired and how many of them it cancelled.  Failures on one reservation
// are logged and do not stop the round.
func (s *ExpirySweep) Sweep(ctx context.Context) (listed, expired int) {
	ids, err := s.expirer.ListExpired(ctx, s.batch)
	if err != nil {
		s.logger.WithError(err).Error("expiry sweep: listing expired reservations failed")
		return 0, 0
	}
	failed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.expirer.Expire(ctx, id)
		if err != nil {
			failed++
			s.logger.WithError(err).WithField("reservation_id", id).Error("expiry sweep: expire failed")
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 || failed > 0 {
		s.logger.WithFields(logrus.Fields{"expired": expired, "failed": failed}).Info("expiry sweep round done")
	}
	// A round where every listed reservation failed would list the same
	// rows again; report it as short so drain stops.
	if failed == len(ids) {
		return 0, expired
	}
	return len(ids), expired
}
