package rabbit

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/robertarktes/hotel-booking-web/internal/notify"
)

const Exchange = "hotel.notifications"

// Channel is the part of *amqp.Channel the adapters use.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards notifications to the topic exchange under notification.<kind>.
type Publisher struct {
	ch Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "opening channel")
	}
	return NewChannelPublisher(ch)
}

func NewChannelPublisher(ch Channel) (*Publisher, error) {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declaring exchange %s", Exchange)
	}
	return &Publisher{ch: ch}, nil
}

func RoutingKey(kind notify.Kind) string {
	return "notification." + string(kind)
}

func (p *Publisher) Notify(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, tableCarrier(headers))
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID.String(),
		Timestamp:    n.At,
		Headers:      headers,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, Exchange, RoutingKey(n.Kind), false, false, msg); err != nil {
		return errors.Wrapf(err, "publishing notification %s", n.ID)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// tableCarrier lets the otel propagator read and write AMQP headers.
type tableCarrier amqp.Table

func (c tableCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c tableCarrier) Set(key, value string) {
	c[key] = value
}

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
