package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketdist/bucketdist/internal/broker"
	"github.com/bucketdist/bucketdist/internal/broker/fake"
)

func queueOpts() broker.QueueOptions {
	return broker.QueueOptions{}
}

func TestBucketsMovesIncomingToActive(t *testing.T) {
	b := fake.NewBroker()
	conn, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	seedCh, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, seedCh.DeclareQueue("buckets", queueOpts()))
	require.NoError(t, seedCh.Publish(context.Background(), "", "buckets", []byte("a"), nil))
	require.NoError(t, seedCh.Publish(context.Background(), "", "buckets", []byte("b"), nil))

	c := New()
	require.NoError(t, c.Start(context.Background(), conn, "buckets", 10, "peer-1"))

	assert.Eventually(t, func() bool { return len(c.State().Incoming) == 2 }, time.Second, time.Millisecond)

	got := c.Buckets()
	assert.ElementsMatch(t, []string{"a", "b"}, got)
	assert.Empty(t, c.State().Incoming)
}

func TestReleaseRequeuesSelectedBuckets(t *testing.T) {
	b := fake.NewBroker()
	conn, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	seedCh, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, seedCh.DeclareQueue("buckets", queueOpts()))
	require.NoError(t, seedCh.Publish(context.Background(), "", "buckets", []byte("a"), nil))
	require.NoError(t, seedCh.Publish(context.Background(), "", "buckets", []byte("b"), nil))

	c := New()
	require.NoError(t, c.Start(context.Background(), conn, "buckets", 10, "peer-1"))
	assert.Eventually(t, func() bool { return len(c.State().Incoming) == 2 }, time.Second, time.Millisecond)
	c.Buckets()

	c.Release([]string{"a"})

	assert.Eventually(t, func() bool { return b.QueueDepth("buckets") == 1 }, time.Second, time.Millisecond)
	assert.ElementsMatch(t, []string{"b"}, names(c.State().Active))
}

func TestStopGracefulWaitsForDrain(t *testing.T) {
	b := fake.NewBroker()
	conn, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	seedCh, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, seedCh.DeclareQueue("buckets", queueOpts()))
	require.NoError(t, seedCh.Publish(context.Background(), "", "buckets", []byte("a"), nil))

	c := New()
	require.NoError(t, c.Start(context.Background(), conn, "buckets", 10, "peer-1"))
	assert.Eventually(t, func() bool { return len(c.State().Incoming) == 1 }, time.Second, time.Millisecond)
	c.Buckets()

	done := make(chan struct{})
	go func() {
		c.Stop(false)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("stop must not finish while active is non-empty")
	case <-time.After(50 * time.Millisecond):
	}

	c.Release([]string{"a"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not finish after drain")
	}
	assert.Equal(t, StatusStopped, c.State().Status)
}

func TestStopForceBypassesDrain(t *testing.T) {
	b := fake.NewBroker()
	conn, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	seedCh, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, seedCh.DeclareQueue("buckets", queueOpts()))
	require.NoError(t, seedCh.Publish(context.Background(), "", "buckets", []byte("a"), nil))

	c := New()
	require.NoError(t, c.Start(context.Background(), conn, "buckets", 10, "peer-1"))
	assert.Eventually(t, func() bool { return len(c.State().Incoming) == 1 }, time.Second, time.Millisecond)
	c.Buckets()

	c.Stop(true)
	assert.Equal(t, StatusStopped, c.State().Status)

	// Force-stopped while a bucket was still active: the real broker
	// semantics requeue it on channel close, which the fake models too.
	assert.Eventually(t, func() bool { return b.QueueDepth("buckets") == 1 }, time.Second, time.Millisecond)
}

func TestRestartPreservesConsumerIdentity(t *testing.T) {
	b := fake.NewBroker()
	conn, err := b.Gateway().Connect(context.Background(), "ignored")
	require.NoError(t, err)

	seedCh, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, seedCh.DeclareQueue("buckets", queueOpts()))

	c := New()
	require.NoError(t, c.Start(context.Background(), conn, "buckets", 5, "peer-1"))
	require.NoError(t, c.Start(context.Background(), conn, "buckets", 7, "peer-1"))

	assert.Equal(t, StatusRunning, c.State().Status)
}
