// Package consumer implements the per-peer bucket-consumer state machine
// (spec section 4.3): the three-list incoming/active/released record that
// tracks broker deliveries against what has been handed to the client and
// what is awaiting requeue, plus quiesce-then-stop semantics.
package consumer

import (
	"context"
	"fmt"
	"sync"

	"github.com/bucketdist/bucketdist/internal/broker"
	"github.com/bucketdist/bucketdist/internal/logging"
	"github.com/bucketdist/bucketdist/internal/pubsub"
)

// Status is one of the three lifecycle phases a Consumer can be in.
type Status string

const (
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
)

// Bucket pairs a bucket name with the delivery tag of the in-flight
// delivery that carried it.
type Bucket struct {
	Name string
	Tag  uint64
}

// State is one snapshot of a Consumer's record. DrainSignal is a
// single-slot rendezvous: the state watcher sends to it whenever Active
// becomes empty while Status is StatusStopping, waking a blocked Stop call.
type State struct {
	InstanceID  string
	Channel     broker.Channel
	ConsumerTag string
	Incoming    []Bucket
	Active      []Bucket
	Released    []Bucket
	Status      Status
	DrainSignal chan struct{}
}

// Consumer is the handle returned by Start. Its identity (the underlying
// cell) survives restarts; only the State value inside it is replaced.
type Consumer struct {
	cell      *pubsub.Cell[State]
	watchOnce sync.Once
}

// New creates a Consumer with no active subscription. Call Start to bring
// it up.
func New() *Consumer {
	return &Consumer{cell: pubsub.NewCell(State{Status: StatusStopped})}
}

// State returns the current snapshot, for inspection in tests and by the
// distributor's partition-size listener.
func (c *Consumer) State() State {
	return c.cell.Get()
}

// Start opens a channel on conn, sets prefetch, and subscribes to
// queueName. Calling Start again on the same Consumer replaces its channel,
// consumer tag, and all three lists, but the Consumer value itself (and any
// watcher installed on it) remains valid across the restart.
func (c *Consumer) Start(_ context.Context, conn broker.Connection, queueName string, prefetch int, instanceID string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer: open channel: %w", err)
	}
	if err := ch.SetPrefetch(prefetch); err != nil {
		_ = ch.Close()
		return fmt.Errorf("consumer: set prefetch: %w", err)
	}

	tag, err := ch.Subscribe(queueName, c.onDelivery)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consumer: subscribe: %w", err)
	}

	c.cell.Update(func(State) State {
		return State{
			InstanceID:  instanceID,
			Channel:     ch,
			ConsumerTag: tag,
			Status:      StatusRunning,
			DrainSignal: make(chan struct{}, 1),
		}
	})

	c.watchOnce.Do(func() {
		c.cell.Watch(c.onTransition)
	})
	return nil
}

func (c *Consumer) onDelivery(d broker.Delivery) {
	c.cell.Update(func(old State) State {
		ns := old
		ns.Incoming = append(append([]Bucket{}, old.Incoming...), Bucket{Name: string(d.Body), Tag: d.Tag})
		return ns
	})
}

// Buckets moves every item in Incoming to the tail of Active (preserving
// arrival order) if the consumer is running, and returns the names
// currently in Active either way.
func (c *Consumer) Buckets() []string {
	_, updated := c.cell.Update(func(old State) State {
		if old.Status != StatusRunning {
			return old
		}
		ns := old
		ns.Active = append(append([]Bucket{}, old.Active...), old.Incoming...)
		ns.Incoming = nil
		return ns
	})
	return names(updated.Active)
}

// Release partitions Active into kept (not in names) and released (in
// names), then reject-requeues every released delivery. Broker failures are
// logged, not returned.
func (c *Consumer) Release(names []string) {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	_, updated := c.cell.Update(func(old State) State {
		var kept, released []Bucket
		for _, b := range old.Active {
			if _, ok := wanted[b.Name]; ok {
				released = append(released, b)
			} else {
				kept = append(kept, b)
			}
		}
		ns := old
		ns.Active = kept
		ns.Released = released
		return ns
	})

	for _, b := range updated.Released {
		if err := updated.Channel.RejectRequeue(b.Tag); err != nil {
			logging.Warn("release: reject_requeue failed", "bucket", b.Name, "error", err)
		}
	}
}

// Stop transitions the consumer toward StatusStopped. If force is false and
// Active is non-empty, it waits for every active bucket to be released
// before finalizing; if force is true it stops immediately regardless of
// outstanding active buckets.
func (c *Consumer) Stop(force bool) {
	for {
		_, updated := c.cell.Update(func(old State) State {
			ns := old
			if len(old.Active) == 0 || force {
				ns.Status = StatusStopped
				ns.Incoming = nil
				ns.Released = nil
			} else {
				ns.Status = StatusStopping
			}
			return ns
		})
		if updated.Status == StatusStopped {
			return
		}
		<-updated.DrainSignal
	}
}

// onTransition is the cell's state-change watcher (spec section 4.3 table).
func (c *Consumer) onTransition(change pubsub.Change[State]) {
	old, updated := change.Old, change.New

	if updated.Status == StatusStopping && len(updated.Active) == 0 {
		select {
		case updated.DrainSignal <- struct{}{}:
		default:
		}
	}

	if updated.Status == StatusStopped && old.Status != StatusStopped && updated.Channel != nil {
		if updated.ConsumerTag != "" {
			if err := updated.Channel.Cancel(updated.ConsumerTag); err != nil {
				logging.Warn("stop: cancel failed", "error", err)
			}
		}
		if err := updated.Channel.Recover(true); err != nil {
			logging.Warn("stop: recover failed", "error", err)
		}
		if err := updated.Channel.Close(); err != nil {
			logging.Warn("stop: close failed", "error", err)
		}
	}
}

func names(buckets []Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Name
	}
	return out
}
