// Package amqpgw implements broker.Gateway over RabbitMQ using
// github.com/rabbitmq/amqp091-go.
package amqpgw

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bucketdist/bucketdist/internal/broker"
	"github.com/bucketdist/bucketdist/internal/logging"
)

// AMQP reply codes used to distinguish ErrLockContended and ErrQueueConflict
// from other channel/connection errors. See the AMQP 0-9-1 spec, section
// 1.8.3.2.
const (
	replyCodeResourceLocked     = 405
	replyCodePreconditionFailed = 406
	replyCodeAccessRefused      = 403
	replyCodeNotFound           = 404
)

// Gateway dials RabbitMQ connections.
type Gateway struct{}

// New returns a Gateway backed by amqp091-go.
func New() *Gateway {
	return &Gateway{}
}

// Connect dials url and returns a Connection. ctx is accepted for interface
// symmetry; amqp091-go's Dial itself is not context-aware.
func (Gateway) Connect(_ context.Context, url string) (broker.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errJoin(broker.ErrBrokerUnavailable, err)
	}
	return &connection{conn: conn}, nil
}

type connection struct {
	conn *amqp.Connection
	mu   sync.Mutex
}

func (c *connection) Channel() (broker.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, errJoin(broker.ErrBrokerUnavailable, err)
	}
	return &channel{ch: ch}, nil
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

func (c *connection) IsClosed() bool {
	return c.conn.IsClosed()
}

type channel struct {
	ch     *amqp.Channel
	mu     sync.Mutex
	closed bool
}

func (c *channel) DeclareQueue(name string, opts broker.QueueOptions) error {
	_, err := c.ch.QueueDeclare(name, opts.Durable, opts.AutoDelete, opts.Exclusive, false, nil)
	if err == nil {
		return nil
	}
	return classifyDeclareError(err)
}

func (c *channel) DeclareQueuePassive(name string) error {
	_, err := c.ch.QueueDeclarePassive(name, false, false, false, false, nil)
	if err == nil {
		return nil
	}
	if code, ok := amqpCode(err); ok && code == replyCodeNotFound {
		return broker.ErrQueueNotFound
	}
	return errJoin(broker.ErrQueueNotFound, err)
}

func (c *channel) DeleteQueue(name string) error {
	_, err := c.ch.QueueDelete(name, false, false, false)
	return err
}

func (c *channel) DeclareFanoutExchange(name string) error {
	return c.ch.ExchangeDeclare(name, "fanout", false, false, false, false, nil)
}

func (c *channel) Bind(queue, exchange string) error {
	return c.ch.QueueBind(queue, "", exchange, false, nil)
}

func (c *channel) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers broker.Headers) error {
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        body,
		Headers:     toAMQPTable(headers),
	})
}

func (c *channel) SetPrefetch(n int) error {
	return c.ch.Qos(n, 0, false)
}

func (c *channel) Subscribe(queue string, handler broker.DeliveryHandler) (string, error) {
	tag := newConsumerTag()
	deliveries, err := c.ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return "", errJoin(broker.ErrBrokerUnavailable, err)
	}

	go func() {
		for d := range deliveries {
			deliverOne(tag, handler, d)
		}
	}()

	return tag, nil
}

// newConsumerTag generates a client-side consumer tag. amqp091-go accepts an
// empty tag and lets the broker assign one, but never surfaces that assigned
// tag back to the caller, so Cancel would have nothing to reference; a
// client-generated tag, passed explicitly into Consume, sidesteps that.
func newConsumerTag() string {
	return "bucketdist-" + uuid.NewString()
}

// deliverOne invokes handler for a single delivery, recovering and logging
// any panic so one bad message cannot take down the consume loop for the
// rest of the subscription's lifetime.
func deliverOne(tag string, handler broker.DeliveryHandler, d amqp.Delivery) {
	defer logging.RecoverPanic("amqpgw delivery handler ("+tag+")", nil)
	handler(broker.Delivery{
		Tag:     d.DeliveryTag,
		Headers: fromAMQPTable(d.Headers),
		Body:    d.Body,
	})
}

func (c *channel) Ack(tag uint64) error {
	return c.ch.Ack(tag, false)
}

func (c *channel) RejectRequeue(tag uint64) error {
	return c.ch.Reject(tag, true)
}

func (c *channel) Cancel(consumerTag string) error {
	if consumerTag == "" {
		return nil
	}
	return c.ch.Cancel(consumerTag, false)
}

func (c *channel) Recover(requeue bool) error {
	return c.ch.Recover(requeue)
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ch.Close()
}

func classifyDeclareError(err error) error {
	code, ok := amqpCode(err)
	if !ok {
		return errJoin(broker.ErrBrokerUnavailable, err)
	}
	switch code {
	case replyCodeResourceLocked, replyCodeAccessRefused:
		return broker.ErrLockContended
	case replyCodePreconditionFailed:
		return broker.ErrQueueConflict
	default:
		return errJoin(broker.ErrBrokerUnavailable, err)
	}
}

func amqpCode(err error) (int, bool) {
	var aerr *amqp.Error
	if errors.As(err, &aerr) {
		return aerr.Code, true
	}
	return 0, false
}

func errJoin(sentinel, cause error) error {
	return &wrappedError{sentinel: sentinel, cause: cause}
}

type wrappedError struct {
	sentinel error
	cause    error
}

func (e *wrappedError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *wrappedError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}

func toAMQPTable(h broker.Headers) amqp.Table {
	if len(h) == 0 {
		return nil
	}
	t := amqp.Table{}
	for k, v := range h {
		t[k] = v
	}
	return t
}

func fromAMQPTable(t amqp.Table) broker.Headers {
	if len(t) == 0 {
		return nil
	}
	h := make(broker.Headers, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			h[k] = s
		}
	}
	return h
}
