// Package fake provides an in-memory broker.Gateway used by unit tests. It
// actually holds queued messages, respects prefetch, and requeues
// unacknowledged deliveries on Recover/Close/Reject the way a real AMQP
// broker does, so tests can exercise the consumer and distributor state
// machines without a live RabbitMQ instance (spec section 8, "verify via
// randomized interleavings with a fake broker").
package fake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bucketdist/bucketdist/internal/broker"
)

// Broker is the shared in-memory network every fake Connection talks to.
// Construct one per test cluster; peers share it the way real peers share a
// RabbitMQ instance.
type Broker struct {
	mu        sync.Mutex
	queues    map[string]*fakeQueue
	exchanges map[string]map[string]struct{} // exchange -> bound queue names
	nextTag   atomic.Uint64

	// ConnectErr, when set, makes every Connect call fail with this error.
	ConnectErr error
}

type fakeQueue struct {
	opts      broker.QueueOptions
	declared  bool
	ownerConn *connection // set when opts.Exclusive
	pending   []message
}

type message struct {
	tag     uint64
	headers broker.Headers
	body    []byte
}

// NewBroker creates an empty fake broker.
func NewBroker() *Broker {
	return &Broker{
		queues:    make(map[string]*fakeQueue),
		exchanges: make(map[string]map[string]struct{}),
	}
}

// Gateway returns a broker.Gateway backed by b. Every Connect call returns a
// distinct logical connection sharing b's queues and exchanges, modeling
// multiple peers against one broker.
func (b *Broker) Gateway() broker.Gateway {
	return &gateway{broker: b}
}

// QueueDepth returns the number of messages currently pending (not yet
// delivered to a consumer) in a queue, for test assertions.
func (b *Broker) QueueDepth(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return 0
	}
	return len(q.pending)
}

type gateway struct {
	broker *Broker
}

func (g *gateway) Connect(_ context.Context, _ string) (broker.Connection, error) {
	if g.broker.ConnectErr != nil {
		return nil, g.broker.ConnectErr
	}
	return &connection{broker: g.broker}, nil
}

type connection struct {
	broker *Broker
	mu     sync.Mutex
	closed bool
}

func (c *connection) Channel() (broker.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, broker.ErrBrokerUnavailable
	}
	return &channel{conn: c, broker: c.broker, unacked: make(map[uint64]queuedDelivery)}, nil
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type queuedDelivery struct {
	queue   string
	message message
}

type channel struct {
	conn     *connection
	broker   *Broker
	mu       sync.Mutex
	closed   bool
	prefetch int

	subQueue  string
	handler   broker.DeliveryHandler
	stopPump  chan struct{}
	unackedMu sync.Mutex
	unacked   map[uint64]queuedDelivery
}

func (c *channel) DeclareQueue(name string, opts broker.QueueOptions) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	q, exists := b.queues[name]
	if !exists {
		q = &fakeQueue{opts: opts, declared: true}
		if opts.Exclusive {
			q.ownerConn = c.conn
		}
		b.queues[name] = q
		return nil
	}

	if q.opts.Exclusive && q.ownerConn != c.conn {
		return broker.ErrLockContended
	}
	if q.opts != opts {
		return broker.ErrQueueConflict
	}
	return nil
}

func (c *channel) DeclareQueuePassive(name string) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[name]; !ok {
		return broker.ErrQueueNotFound
	}
	return nil
}

func (c *channel) DeleteQueue(name string) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queues, name)
	return nil
}

func (c *channel) DeclareFanoutExchange(name string) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.exchanges[name]; !ok {
		b.exchanges[name] = make(map[string]struct{})
	}
	return nil
}

func (c *channel) Bind(queue, exchange string) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.exchanges[exchange]; !ok {
		b.exchanges[exchange] = make(map[string]struct{})
	}
	b.exchanges[exchange][queue] = struct{}{}
	return nil
}

func (c *channel) Publish(_ context.Context, exchange, routingKey string, body []byte, headers broker.Headers) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	deliver := func(queueName string) {
		q, ok := b.queues[queueName]
		if !ok {
			return
		}
		q.pending = append(q.pending, message{
			tag:     b.nextTag.Add(1),
			headers: headers,
			body:    append([]byte(nil), body...),
		})
	}

	if exchange == "" {
		deliver(routingKey)
		return nil
	}

	for queueName := range b.exchanges[exchange] {
		deliver(queueName)
	}
	return nil
}

func (c *channel) SetPrefetch(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = n
	return nil
}

func (c *channel) Subscribe(queue string, handler broker.DeliveryHandler) (string, error) {
	c.mu.Lock()
	c.subQueue = queue
	c.handler = handler
	c.stopPump = make(chan struct{})
	stop := c.stopPump
	c.mu.Unlock()

	go c.pump(stop)

	return "tag-" + queue, nil
}

// pump repeatedly tries to move pending messages into flight, honoring
// prefetch, until Cancel/Close stops it.
func (c *channel) pump(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		delivered := c.tryDeliverOne()
		if !delivered {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
			}
		}
	}
}

func (c *channel) tryDeliverOne() bool {
	c.mu.Lock()
	prefetch := c.prefetch
	queue := c.subQueue
	handler := c.handler
	c.mu.Unlock()
	if queue == "" || handler == nil {
		return false
	}

	c.unackedMu.Lock()
	inFlight := len(c.unacked)
	c.unackedMu.Unlock()
	if prefetch > 0 && inFlight >= prefetch {
		return false
	}

	b := c.broker
	b.mu.Lock()
	q, ok := b.queues[queue]
	if !ok || len(q.pending) == 0 {
		b.mu.Unlock()
		return false
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	b.mu.Unlock()

	c.unackedMu.Lock()
	c.unacked[msg.tag] = queuedDelivery{queue: queue, message: msg}
	c.unackedMu.Unlock()

	handler(broker.Delivery{Tag: msg.tag, Headers: msg.headers, Body: msg.body})
	return true
}

func (c *channel) Ack(tag uint64) error {
	c.unackedMu.Lock()
	defer c.unackedMu.Unlock()
	delete(c.unacked, tag)
	return nil
}

func (c *channel) RejectRequeue(tag uint64) error {
	c.unackedMu.Lock()
	d, ok := c.unacked[tag]
	if ok {
		delete(c.unacked, tag)
	}
	c.unackedMu.Unlock()
	if !ok {
		return nil
	}
	c.requeue(d)
	return nil
}

func (c *channel) requeue(d queuedDelivery) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[d.queue]
	if !ok {
		return
	}
	q.pending = append([]message{d.message}, q.pending...)
}

func (c *channel) Cancel(_ string) error {
	c.mu.Lock()
	stop := c.stopPump
	c.stopPump = nil
	c.subQueue = ""
	c.handler = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	return nil
}

func (c *channel) Recover(requeue bool) error {
	if !requeue {
		return nil
	}
	c.unackedMu.Lock()
	pending := make([]queuedDelivery, 0, len(c.unacked))
	for _, d := range c.unacked {
		pending = append(pending, d)
	}
	c.unacked = make(map[uint64]queuedDelivery)
	c.unackedMu.Unlock()

	for _, d := range pending {
		c.requeue(d)
	}
	return nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.Cancel("")
	_ = c.Recover(true)
	return nil
}
