// Package distributor composes the broker gateway, pool initializer,
// bucket consumer, and broadcast plane into the peer-facing bucket
// distributor (spec section 4.5 and section 6, "external interfaces").
package distributor

import (
	"context"
	"fmt"
	"time"

	"github.com/bucketdist/bucketdist/internal/broadcast"
	"github.com/bucketdist/bucketdist/internal/broker"
	"github.com/bucketdist/bucketdist/internal/consumer"
	"github.com/bucketdist/bucketdist/internal/logging"
	"github.com/bucketdist/bucketdist/internal/pool"
	"github.com/bucketdist/bucketdist/internal/pubsub"
	"github.com/bucketdist/bucketdist/internal/wordlist"
)

// Options mirrors spec section 6's recognized option keys. Zero values are
// replaced with the documented defaults by Start.
type Options struct {
	PeersPeriod      time.Duration
	ExpirationPeriod time.Duration
	PartitionDelay   time.Duration
	PartitionPeriod  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PeersPeriod == 0 {
		o.PeersPeriod = time.Minute
	}
	if o.ExpirationPeriod == 0 {
		o.ExpirationPeriod = 2 * time.Minute
	}
	if o.PartitionDelay == 0 {
		o.PartitionDelay = 5 * time.Second
	}
	if o.PartitionPeriod == 0 {
		o.PartitionPeriod = 5 * time.Second
	}
	return o
}

// ClusterState is the cell value mutated by peer-map updates and the
// partition-size listener.
type ClusterState struct {
	Peers         map[string]int64 // peer-id -> last-seen epoch millis
	PartitionSize int
	Shutdown      bool
}

func (s ClusterState) clone() ClusterState {
	peers := make(map[string]int64, len(s.Peers))
	for k, v := range s.Peers {
		peers[k] = v
	}
	return ClusterState{Peers: peers, PartitionSize: s.PartitionSize, Shutdown: s.Shutdown}
}

// Distributor is the running handle returned by Start.
type Distributor struct {
	conn             broker.Connection
	clusterName      string
	defaultBuckets   []string
	peerID           string
	ownerQueue       string
	bucketQueue      string
	broadcastExch    string
	opts             Options
	nowMillis        func() int64

	cluster       *pubsub.Cell[ClusterState]
	bucketConsumer *consumer.Consumer
	broadcast     *broadcast.Consumer

	stopPeers      func()
	stopPartitions func()
}

// Start derives queue/exchange names from clusterName, runs the pool
// initializer, brings up the bucket consumer and broadcast plane, and
// schedules the two periodic tasks (spec section 4.5, steps 1-8).
//
// nowMillis supplies the clock used for peer last-seen timestamps and the
// expiration sweep; pass a fixed function in tests, time-based wall clock
// in production.
func Start(ctx context.Context, conn broker.Connection, clusterName string, defaultBuckets []string, words *wordlist.List, opts Options, nowMillis func() int64) (*Distributor, error) {
	opts = opts.withDefaults()

	peerID, err := wordlist.PeerID(words)
	if err != nil {
		return nil, fmt.Errorf("distributor: generate peer id: %w", err)
	}

	d := &Distributor{
		conn:           conn,
		clusterName:    clusterName,
		defaultBuckets: defaultBuckets,
		peerID:         peerID,
		ownerQueue:     clusterName + ".bucket.owner",
		bucketQueue:    clusterName + ".bucket",
		broadcastExch:  clusterName + ".bucket.broadcast",
		opts:           opts,
		nowMillis:      nowMillis,
		bucketConsumer: consumer.New(),
	}

	if err := pool.Init(ctx, conn, d.ownerQueue, d.bucketQueue, defaultBuckets); err != nil {
		return nil, fmt.Errorf("distributor: pool init: %w", err)
	}

	d.cluster = pubsub.NewCell(ClusterState{Peers: map[string]int64{}, PartitionSize: 1})
	d.cluster.Watch(d.onClusterChange)

	if err := d.bucketConsumer.Start(ctx, conn, d.bucketQueue, 1, peerID); err != nil {
		return nil, fmt.Errorf("distributor: start bucket consumer: %w", err)
	}

	bc, err := broadcast.Start(conn, d.broadcastExch, peerID, d.handleBroadcast)
	if err != nil {
		return nil, fmt.Errorf("distributor: start broadcast consumer: %w", err)
	}
	d.broadcast = bc

	if err := broadcast.Send(ctx, conn, d.broadcastExch, peerID, broadcast.Poll); err != nil {
		logging.Warn("distributor: initial poll failed", "error", err)
	}

	d.stopPeers = schedule("update_peers", 0, opts.PeersPeriod, d.updatePeers)
	d.stopPartitions = schedule("update_partitions", opts.PartitionDelay, opts.PartitionPeriod, d.updatePartitions)

	return d, nil
}

// Stop cancels both scheduled tasks, stops the broadcast consumer, drains
// and stops the bucket consumer, and broadcasts a final retract.
func (d *Distributor) Stop(ctx context.Context) {
	d.stopPeers()
	d.stopPartitions()

	d.broadcast.Stop()
	d.bucketConsumer.Stop(false)

	if err := broadcast.Send(ctx, d.conn, d.broadcastExch, d.peerID, broadcast.Retract(d.peerID)); err != nil {
		logging.Warn("distributor: retract broadcast failed", "error", err)
	}

	d.cluster.Update(func(old ClusterState) ClusterState {
		ns := old.clone()
		ns.Shutdown = true
		return ns
	})
}

// AcquireBuckets returns the current active set from the bucket consumer.
func (d *Distributor) AcquireBuckets() []string {
	return d.bucketConsumer.Buckets()
}

// ReleaseBuckets releases a subset of the active set back to the broker.
func (d *Distributor) ReleaseBuckets(names []string) {
	d.bucketConsumer.Release(names)
}

// PeerID returns this process's stable peer identity.
func (d *Distributor) PeerID() string { return d.peerID }

// ClusterSnapshot returns the current cluster state, for diagnostics.
func (d *Distributor) ClusterSnapshot() ClusterState {
	return d.cluster.Get()
}

// handleBroadcast is the broadcast handler (spec section 4.5.2). Messages
// are processed even when senderID equals this peer's own id, so a peer's
// own announce is idempotently reflected in its local peer map.
func (d *Distributor) handleBroadcast(_ string, body string) {
	if body == broadcast.Poll {
		if err := broadcast.Send(context.Background(), d.conn, d.broadcastExch, d.peerID, broadcast.Announce(d.peerID)); err != nil {
			logging.Warn("distributor: poll response failed", "error", err)
		}
		return
	}

	if id, ok := broadcast.ParseAnnounce(body); ok {
		d.cluster.Update(func(old ClusterState) ClusterState {
			ns := old.clone()
			ns.Peers[id] = d.nowMillis()
			return ns
		})
		return
	}

	if id, ok := broadcast.ParseRetract(body); ok {
		d.cluster.Update(func(old ClusterState) ClusterState {
			ns := old.clone()
			delete(ns.Peers, id)
			return ns
		})
	}
}

func (d *Distributor) updatePeers() {
	if err := broadcast.Send(context.Background(), d.conn, d.broadcastExch, d.peerID, broadcast.Announce(d.peerID)); err != nil {
		logging.Warn("distributor: self-announce failed", "error", err)
		return
	}

	cutoff := d.nowMillis() - d.opts.ExpirationPeriod.Milliseconds()
	d.cluster.Update(func(old ClusterState) ClusterState {
		ns := old.clone()
		for id, lastSeen := range old.Peers {
			if lastSeen < cutoff {
				delete(ns.Peers, id)
			}
		}
		return ns
	})
}

func (d *Distributor) updatePartitions() {
	d.cluster.Update(func(old ClusterState) ClusterState {
		ns := old.clone()
		ns.PartitionSize = partitionSize(len(d.defaultBuckets), len(old.Peers))
		return ns
	})
}

// partitionSize implements spec section 3's formula: floor(n/m), clamped to
// a minimum of 1.
func partitionSize(buckets, peers int) int {
	if peers == 0 {
		return 1
	}
	size := buckets / peers
	if size < 1 {
		size = 1
	}
	return size
}

// onClusterChange is the partition-size listener (spec section 4.5.1).
func (d *Distributor) onClusterChange(change pubsub.Change[ClusterState]) {
	old, updated := change.Old, change.New
	if updated.Shutdown {
		return
	}

	sizeChanged := updated.PartitionSize != old.PartitionSize
	if !sizeChanged && d.bucketConsumer.State().Status != consumer.StatusStopped {
		return
	}

	if sizeChanged {
		logging.Info("partition size changed", "peer_id", d.peerID, "old", old.PartitionSize, "new", updated.PartitionSize)
		d.bucketConsumer.Stop(false)
	}

	if err := d.bucketConsumer.Start(context.Background(), d.conn, d.bucketQueue, updated.PartitionSize, d.peerID); err != nil {
		logging.Warn("distributor: restart bucket consumer failed, will retry on next change", "error", err)
	}
}
