package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker delivers a single event to the external distribution system.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// PermanentError marks a publish failure that retrying cannot fix
// (e.g. an unserializable payload). The dispatcher drops these.
type PermanentError struct {
	err error
}

func (e *PermanentError) Error() string { return "permanent publish failure: " + e.err.Error() }
func (e *PermanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Discard drops every event. Used when the exchange is unreachable at
// boot so the auth surface stays up without the event pipeline.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error {
	return &PermanentError{err: errors.New("event pipeline disabled")}
}

func (Discard) Close() {}

// RabbitBroker publishes events to a durable headers exchange. Event
// attributes become AMQP headers so subscribers bind queues with x-match
// filters without this service knowing who listens.
type RabbitBroker struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	Exchange string
}

func NewRabbitBroker(url, exchange string) (*RabbitBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeHeaders,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitBroker{conn: conn, ch: ch, Exchange: exchange}, nil
}

func (b *RabbitBroker) Close() {
	if b == nil {
		return
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// Publish sends the event as a persistent JSON message. Serialization
// failures are permanent; transport failures are transient and retried by
// the dispatcher.
func (b *RabbitBroker) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return &PermanentError{err: err}
	}
	headers := amqp.Table{}
	for k, v := range ev.Attributes {
		headers[k] = v
	}
	return b.ch.PublishWithContext(ctx,
		b.Exchange,
		ev.Type, // routing key is informational for a headers exchange
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         body,
		},
	)
}
