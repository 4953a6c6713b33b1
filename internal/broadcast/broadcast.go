// Package broadcast implements the fanout gossip plane (spec section 4.4):
// announce/retract/poll messages exchanged between peers over a per-cluster
// fanout exchange.
package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bucketdist/bucketdist/internal/broker"
	"github.com/bucketdist/bucketdist/internal/logging"
)

const (
	peerIDHeader = "peer-id"
	broadcastPrefetch = 10

	AnnouncePrefix = "announce:"
	RetractPrefix  = "retract:"
	Poll           = "poll"
)

// Handler processes one broadcast message. senderID is read from the
// peer-id header; it may equal the local peer's own id (fanout delivers
// self-sent messages too, which the distributor relies on to idempotently
// reflect its own announce).
type Handler func(senderID, body string)

// Announce formats an announce message for peerID.
func Announce(peerID string) string { return AnnouncePrefix + peerID }

// Retract formats a retract message for peerID.
func Retract(peerID string) string { return RetractPrefix + peerID }

// ParseAnnounce extracts the peer id from an announce message, if body is one.
func ParseAnnounce(body string) (string, bool) {
	return strings.CutPrefix(body, AnnouncePrefix)
}

// ParseRetract extracts the peer id from a retract message, if body is one.
func ParseRetract(body string) (string, bool) {
	return strings.CutPrefix(body, RetractPrefix)
}

// Send publishes message to the fanout exchange on a short-lived,
// fire-and-forget channel.
func Send(ctx context.Context, conn broker.Connection, exchange, peerID, message string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("broadcast: open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.DeclareFanoutExchange(exchange); err != nil {
		return fmt.Errorf("broadcast: declare exchange: %w", err)
	}

	headers := broker.Headers{peerIDHeader: peerID}
	if err := ch.Publish(ctx, exchange, "", []byte(message), headers); err != nil {
		return fmt.Errorf("broadcast: publish: %w", err)
	}
	return nil
}

// Consumer owns the channel backing a peer's subscription to the fanout
// exchange.
type Consumer struct {
	channel     broker.Channel
	consumerTag string
}

// Start declares the exchange, declares an auto-named exclusive queue
// bound to it, and subscribes with handler. Prefetch is fixed at 10 per
// spec section 4.4. Deliveries are always acked after the handler returns,
// even if the handler panics, so a single bad message cannot wedge the
// subscription.
func Start(conn broker.Connection, exchange, selfPeerID string, handler Handler) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("broadcast: open channel: %w", err)
	}

	if err := ch.DeclareFanoutExchange(exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("broadcast: declare exchange: %w", err)
	}

	queueName := exchange + ".peer." + uuid.NewString()
	if err := ch.DeclareQueue(queueName, broker.QueueOptions{Durable: false, Exclusive: true, AutoDelete: true}); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("broadcast: declare peer queue: %w", err)
	}
	if err := ch.Bind(queueName, exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("broadcast: bind peer queue: %w", err)
	}
	if err := ch.SetPrefetch(broadcastPrefetch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("broadcast: set prefetch: %w", err)
	}

	tag, err := ch.Subscribe(queueName, func(d broker.Delivery) {
		handleDelivery(ch, d, selfPeerID, handler)
	})
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("broadcast: subscribe: %w", err)
	}

	return &Consumer{channel: ch, consumerTag: tag}, nil
}

func handleDelivery(ch broker.Channel, d broker.Delivery, selfPeerID string, handler Handler) {
	defer ackDelivery(ch, d.Tag)
	defer logging.RecoverPanic("broadcast handler", nil)

	sender := d.Headers[peerIDHeader]
	if sender == "" {
		sender = selfPeerID
	}
	handler(sender, string(d.Body))
}

func ackDelivery(ch broker.Channel, tag uint64) {
	if err := ch.Ack(tag); err != nil {
		logging.Warn("broadcast: ack failed", "error", err)
	}
}

// Stop cancels the subscription and closes the channel. Best-effort:
// errors are logged, not returned.
func (c *Consumer) Stop() {
	if c.consumerTag != "" {
		if err := c.channel.Cancel(c.consumerTag); err != nil {
			logging.Warn("broadcast: cancel failed", "error", err)
		}
	}
	if err := c.channel.Close(); err != nil {
		logging.Warn("broadcast: close failed", "error", err)
	}
}
