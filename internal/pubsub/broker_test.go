package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker[string]()
	defer b.Shutdown()

	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish(CreatedEvent, "hello")

	select {
	case ev := <-ch:
		assert.Equal(t, CreatedEvent, ev.Type)
		assert.Equal(t, "hello", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerGetSubscriberCount(t *testing.T) {
	b := NewBroker[int]()
	defer b.Shutdown()

	assert.Equal(t, 0, b.GetSubscriberCount())

	_, unsubscribe := b.Subscribe()
	assert.Equal(t, 1, b.GetSubscriberCount())

	unsubscribe()
	assert.Equal(t, 0, b.GetSubscriberCount())
}

func TestBrokerShutdownClosesSubscribers(t *testing.T) {
	b := NewBroker[int]()
	ch, _ := b.Subscribe()

	b.Shutdown()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after shutdown")

	// Publish and Subscribe after shutdown must not panic.
	b.Publish(CreatedEvent, 1)
	closedCh, unsubscribe := b.Subscribe()
	_, ok = <-closedCh
	assert.False(t, ok)
	unsubscribe()
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	b := NewBrokerWithOptions[int](1)
	defer b.Shutdown()

	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish(CreatedEvent, 1)
	b.Publish(CreatedEvent, 2) // dropped, buffer of 1 already full

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, 1, ev.Payload)
}
