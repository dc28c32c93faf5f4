package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/eventix-booking/internal/metrics"
)

// Publisher publishes booking events to RabbitMQ.  Errors are returned
// with the failing step attached; the caller logs them without
// interrupting the request.  Messages are marked as persistent.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher that dials url for each message.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// PublishReservationPaid publishes to the reservation.paid queue.
func (p *Publisher) PublishReservationPaid(ctx context.Context, ev ReservationPaidEvent) error {
	return p.publish(ctx, ReservationPaidQueue, ev)
}

// PublishReservationCancelled publishes to the reservation.cancelled queue.
func (p *Publisher) PublishReservationCancelled(ctx context.Context, ev ReservationCancelledEvent) error {
	return p.publish(ctx, ReservationCancelledQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) (err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.EventsPublished.WithLabelValues(queueName, status).Inc()
	}()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("publishing to %s: dial: %w", queueName, err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("publishing to %s: channel open: %w", queueName, err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		return fmt.Errorf("publishing to %s: queue declare: %w", queueName, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("publishing to %s: marshal event: %w", queueName, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publishing to %s: publish: %w", queueName, err)
	}

	return nil
}

// NopPublisher drops every event.  It is used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishReservationPaid(context.Context, ReservationPaidEvent) error { return nil }

func (NopPublisher) PublishReservationCancelled(context.Context, ReservationCancelledEvent) error {
	return nil
}
