package pubsub

// EventType classifies what happened to the payload carried by an Event.
type EventType string

const (
	// CreatedEvent marks the first observation of a value. Cell does not
	// publish it; Cell publishes only UpdatedEvent.
	CreatedEvent EventType = "created"
	// UpdatedEvent marks a state-cell transition from an old value to a new one.
	UpdatedEvent EventType = "updated"
)

// Event is a single notification published by a Broker.
type Event[T any] struct {
	Type    EventType
	Payload T
}
