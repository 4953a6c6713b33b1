// Package pool implements the bucket-pool initializer: the exclusive-queue
// lock that ensures exactly one peer in a cluster's lifetime seeds the
// shared bucket queue (spec section 4.2).
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/bucketdist/bucketdist/internal/broker"
	"github.com/bucketdist/bucketdist/internal/logging"
)

// Init ensures bucketQueue exists and has been seeded exactly once with one
// message per name in defaultBuckets. Peers that lose the race for
// ownerQueue treat initialization as already complete and return nil.
func Init(ctx context.Context, conn broker.Connection, ownerQueue, bucketQueue string, defaultBuckets []string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("pool: open lock channel: %w", err)
	}

	err = ch.DeclareQueue(ownerQueue, broker.QueueOptions{Durable: false, Exclusive: true, AutoDelete: false})
	if err != nil {
		if errors.Is(err, broker.ErrLockContended) {
			logging.Debug("pool initializer lock held elsewhere, skipping", "owner_queue", ownerQueue)
			_ = ch.Close()
			return nil
		}
		_ = ch.Close()
		return fmt.Errorf("pool: declare owner queue: %w", err)
	}

	defer func() {
		if derr := ch.DeleteQueue(ownerQueue); derr != nil {
			logging.Warn("pool initializer failed to release lock queue", "owner_queue", ownerQueue, "error", derr)
		}
		if cerr := ch.Close(); cerr != nil {
			logging.Warn("pool initializer failed to close lock channel", "error", cerr)
		}
	}()

	return seed(ctx, ch, bucketQueue, defaultBuckets)
}

// seed is the critical section run by the lock winner.
func seed(ctx context.Context, ch broker.Channel, bucketQueue string, defaultBuckets []string) error {
	err := ch.DeclareQueuePassive(bucketQueue)
	if err == nil {
		logging.Debug("bucket queue already seeded", "bucket_queue", bucketQueue)
		return nil
	}
	if !errors.Is(err, broker.ErrQueueNotFound) {
		return fmt.Errorf("pool: probe bucket queue: %w", err)
	}

	if err := ch.DeclareQueue(bucketQueue, broker.QueueOptions{Durable: false, Exclusive: false, AutoDelete: false}); err != nil {
		return fmt.Errorf("pool: declare bucket queue: %w", err)
	}

	for _, name := range defaultBuckets {
		if err := ch.Publish(ctx, "", bucketQueue, []byte(name), nil); err != nil {
			return fmt.Errorf("pool: seed bucket %q: %w", name, err)
		}
	}

	logging.Info("seeded bucket pool", "bucket_queue", bucketQueue, "count", len(defaultBuckets))
	return nil
}
