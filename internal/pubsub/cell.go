package pubsub

import (
	"sync"

	"github.com/bucketdist/bucketdist/internal/logging"
)

// Change carries the before/after values of a Cell mutation to watchers.
type Change[T any] struct {
	Old T
	New T
}

// Cell is a mutex-guarded compare-and-swap-style container for a single
// mutable record. Every mutation goes through Update, which applies a pure
// function old -> new under the lock and publishes the {old, new} pair on the
// cell's Broker before releasing it (Publish never blocks). Watchers
// subscribed via Watch therefore observe strictly-ordered transitions and,
// since they run on their own goroutine, can run
// side-effecting code (restart a consumer, cancel a subscription) without
// holding the cell's lock and without recursing synchronously into another
// Update call on the same cell.
type Cell[T any] struct {
	mu     sync.Mutex
	value  T
	broker *Broker[Change[T]]
}

// NewCell creates a state cell seeded with the given initial value.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:  initial,
		broker: NewBroker[Change[T]](),
	}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Update atomically replaces the cell's value with fn(old) and returns both
// the old and new values. The Change is published to watchers after the
// new value is stored and before the lock is released, so concurrent
// updates reach watchers in the order they were applied.
func (c *Cell[T]) Update(fn func(old T) T) (old T, new T) {
	c.mu.Lock()
	old = c.value
	new = fn(old)
	c.value = new
	c.broker.Publish(UpdatedEvent, Change[T]{Old: old, New: new})
	c.mu.Unlock()

	return old, new
}

// Watch registers fn to run, on a single dedicated goroutine, for every
// subsequent Update on this cell. fn is invoked serially and in mutation
// order, so it is safe for fn to perform blocking side effects (closing a
// broker channel, restarting a consumer) without extra synchronization. The
// returned function stops the watcher.
func (c *Cell[T]) Watch(fn func(Change[T])) (stop func()) {
	events, unsubscribe := c.broker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			runWatcher(fn, ev.Payload)
		}
	}()
	return func() {
		unsubscribe()
		<-done
	}
}

// runWatcher invokes fn for one Change, recovering and logging a panic so a
// single bad transition cannot kill the watcher goroutine and silently stop
// observing every subsequent Update.
func runWatcher[T any](fn func(Change[T]), change Change[T]) {
	defer logging.RecoverPanic("cell watcher", nil)
	fn(change)
}
