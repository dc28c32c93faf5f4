package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer listens to the booking queues and writes one audit line per
// message.  The audit logger usually points at logs/booking.log.
type Consumer struct {
	url    string
	logger logrus.FieldLogger
	audit  logrus.FieldLogger
}

// NewConsumer returns a Consumer.  logger receives connection diagnostics,
// audit receives one entry per handled message.
func NewConsumer(url string, logger, audit logrus.FieldLogger) *Consumer {
	return &Consumer{url: url, logger: logger, audit: audit}
}

// Run connects to RabbitMQ, declares both booking queues (durable) and
// consumes them until ctx is cancelled.  Broker failures are retried with
// exponential backoff capped at 30s; Run only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.WithError(err).Warnf("booking-consumer: failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WithError(err).Warn("booking-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.WithError(err).Warn("booking-consumer: set QoS failed")
	}

	paid, err := declareAndConsume(ch, ReservationPaidQueue)
	if err != nil {
		return err
	}
	cancelled, err := declareAndConsume(ch, ReservationCancelledQueue)
	if err != nil {
		return err
	}

	for {
		var (
			d       amqp.Delivery
			ok      bool
			queueNm string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-paid:
			queueNm = ReservationPaidQueue
		case d, ok = <-cancelled:
			queueNm = ReservationCancelledQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.handleMessage(queueNm, d.Body); err != nil {
			c.logger.WithError(err).WithField("queue", queueNm).Warn("booking-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

func declareAndConsume(ch *amqp.Channel, queueName string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queueName, err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queueName, err)
	}
	return msgs, nil
}

func (c *Consumer) handleMessage(queueName string, body []byte) error {
	switch queueName {
	case ReservationPaidQueue:
		var ev ReservationPaidEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		c.audit.WithFields(logrus.Fields{
			"reservation_id": ev.ReservationID,
			"payment_id":     ev.PaymentID,
			"user_id":        ev.UserID,
			"event_id":       ev.EventID,
			"seats":          ev.Seats,
			"amount":         ev.Amount,
			"method":         ev.Method,
			"tickets":        ev.TicketCodes,
			"paid_at":        ev.PaidAt,
		}).Info("Reservation paid")
	case ReservationCancelledQueue:
		var ev ReservationCancelledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		c.audit.WithFields(logrus.Fields{
			"reservation_id":  ev.ReservationID,
			"user_id":         ev.UserID,
			"event_id":        ev.EventID,
			"seats":           ev.Seats,
			"previous_status": ev.PreviousStatus,
			"trigger":         ev.Trigger,
			"tickets_voided":  ev.TicketsVoided,
			"cancelled_at":    ev.CancelledAt,
		}).Info("Reservation cancelled")
	default:
		return fmt.Errorf("unknown queue %q", queueName)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
