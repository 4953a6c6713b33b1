package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketdist/bucketdist/internal/broker/fake"
)

func TestSendDeliversToAllPeers(t *testing.T) {
	b := fake.NewBroker()
	connA, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)
	connB, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	var mu sync.Mutex
	var gotA, gotB []string

	consA, err := Start(connA, "cluster.bucket.broadcast", "peer-a", func(sender, body string) {
		mu.Lock()
		defer mu.Unlock()
		gotA = append(gotA, sender+"|"+body)
	})
	require.NoError(t, err)
	defer consA.Stop()

	consB, err := Start(connB, "cluster.bucket.broadcast", "peer-b", func(sender, body string) {
		mu.Lock()
		defer mu.Unlock()
		gotB = append(gotB, sender+"|"+body)
	})
	require.NoError(t, err)
	defer consB.Stop()

	require.NoError(t, Send(context.Background(), connA, "cluster.bucket.broadcast", "peer-a", Announce("peer-a")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotA) == 1 && len(gotB) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"peer-a|announce:peer-a"}, gotA)
	assert.Equal(t, []string{"peer-a|announce:peer-a"}, gotB)
}

func TestHandlerPanicStillAcks(t *testing.T) {
	b := fake.NewBroker()
	conn, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	called := make(chan struct{}, broadcastPrefetch+1)
	cons, err := Start(conn, "cluster.bucket.broadcast", "peer-a", func(sender, body string) {
		called <- struct{}{}
		panic("boom")
	})
	require.NoError(t, err)
	defer cons.Stop()

	require.NoError(t, Send(context.Background(), conn, "cluster.bucket.broadcast", "peer-a", Poll))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}

	// Further messages must still be delivered on the same subscription: the
	// panic must not have wedged it or left the first message unacked. A full
	// prefetch window of further messages would stall if the panicking
	// deliveries stayed unacked.
	for i := 0; i < broadcastPrefetch; i++ {
		require.NoError(t, Send(context.Background(), conn, "cluster.bucket.broadcast", "peer-a", Poll))
	}
	for i := 0; i < broadcastPrefetch; i++ {
		select {
		case <-called:
		case <-time.After(time.Second):
			t.Fatal("later message never delivered on the same subscription")
		}
	}
}

func TestParseAnnounceRetract(t *testing.T) {
	id, ok := ParseAnnounce("announce:peer-x")
	require.True(t, ok)
	assert.Equal(t, "peer-x", id)

	_, ok = ParseAnnounce("retract:peer-x")
	assert.False(t, ok)

	id, ok = ParseRetract("retract:peer-y")
	require.True(t, ok)
	assert.Equal(t, "peer-y", id)
}
