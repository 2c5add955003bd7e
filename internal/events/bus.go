package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(MACWrittenEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case CommandHandledEvent:
		event.Publish(b.dispatcher, e)
	case MACWrittenEvent:
		event.Publish(b.dispatcher, e)
	case LEDStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case ClientConnectionEvent:
		event.Publish(b.dispatcher, e)
	case TestPassedEvent:
		event.Publish(b.dispatcher, e)
	case RebootRequestedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e CommandHandledEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CommandHandledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MACWrittenEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LEDStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ClientConnectionEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TestPassedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RebootRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
