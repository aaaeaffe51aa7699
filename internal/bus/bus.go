package bus

import "context"

// Bus carries inbound events from transports and the scheduler to the
// engine. Implementations may use buffered channels, pub/sub systems, or
// any other transport.
type Bus interface {
	// PublishInbound delivers an event, blocking while the buffer is full
	// until ctx is done.
	PublishInbound(ctx context.Context, ev InboundEvent) error
	// InboundChan returns a receive-only channel for the engine to consume.
	InboundChan() <-chan InboundEvent
}

// MessageBus is the default in-process Bus backed by a buffered channel.
type MessageBus struct {
	inbound chan InboundEvent
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{inbound: make(chan InboundEvent, bufSize)}
}

// PublishInbound sends ev to the engine.
func (b *MessageBus) PublishInbound(ctx context.Context, ev InboundEvent) error {
	select {
	case b.inbound <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InboundChan returns a receive-only view of the inbound channel.
func (b *MessageBus) InboundChan() <-chan InboundEvent {
	return b.inbound
}

// InboundSize reports how many events are waiting.
func (b *MessageBus) InboundSize() int { return len(b.inbound) }
