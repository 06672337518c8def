package rabbit

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
)

type Consumer struct {
	ch     *amqp.Channel
	queue  string
	logger observability.Logger
}

// NewConsumer declares queue, binds it to every notification kind and prepares to consume it.
func NewConsumer(conn *amqp.Connection, queue string, logger observability.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "opening channel")
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declaring exchange %s", Exchange)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declaring queue %s", queue)
	}
	if err := ch.QueueBind(queue, "notification.#", Exchange, false, nil); err != nil {
		return nil, errors.Wrapf(err, "binding queue %s", queue)
	}
	return &Consumer{ch: ch, queue: queue, logger: logger}, nil
}

// Run hands every notification to handle until ctx is done. Messages that cannot be decoded are
// dropped; handler failures are requeued once.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, notify.Notification) error) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "consuming %s", c.queue)
	}
	for {
		select {
		case <-ctx.Done():
			return c.ch.Close()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, d, handle)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle func(context.Context, notify.Notification) error) {
	n, msgCtx, err := Decode(ctx, d)
	if err != nil {
		c.logger.WithField("message_id", d.MessageId).WithError(err).Warn("dropping malformed notification")
		_ = d.Nack(false, false)
		return
	}
	if err := handle(msgCtx, n); err != nil {
		c.logger.WithField("notification_id", n.ID).WithError(err).Error("handling notification failed")
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

// Decode reads a notification from d and restores the trace context it was published with.
func Decode(ctx context.Context, d amqp.Delivery) (notify.Notification, context.Context, error) {
	var n notify.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		return notify.Notification{}, ctx, errors.Wrap(err, "decoding notification")
	}
	if d.Headers != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, tableCarrier(d.Headers))
	}
	return n, ctx, nil
}
