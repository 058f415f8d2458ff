package events

import "context"

// Hook receives typed deliveries from a subscription. Implementations must
// not block for long; slow subscribers get dropped by the bus.
type Hook interface {
	OnMessage(context.Context, Message)
	OnStreamStart(context.Context, StreamStart)
	OnStreamChunk(context.Context, StreamChunk)
	OnStreamEnd(context.Context, StreamEnd)
	OnStreamError(context.Context, StreamError)
	OnDiagnostic(context.Context, Diagnostic)
}

// NoopHook implements Hook with empty methods. Embed it to implement only the
// callbacks a subscriber cares about.
type NoopHook struct{}

func (NoopHook) OnMessage(context.Context, Message)         {}
func (NoopHook) OnStreamStart(context.Context, StreamStart) {}
func (NoopHook) OnStreamChunk(context.Context, StreamChunk) {}
func (NoopHook) OnStreamEnd(context.Context, StreamEnd)     {}
func (NoopHook) OnStreamError(context.Context, StreamError) {}
func (NoopHook) OnDiagnostic(context.Context, Diagnostic)   {}

// Dispatch forwards an event to the matching hook callback.
func Dispatch(ctx context.Context, hook Hook, event Event) {
	switch event := event.(type) {
	case Message:
		hook.OnMessage(ctx, event)
	case StreamStart:
		hook.OnStreamStart(ctx, event)
	case StreamChunk:
		hook.OnStreamChunk(ctx, event)
	case StreamEnd:
		hook.OnStreamEnd(ctx, event)
	case StreamError:
		hook.OnStreamError(ctx, event)
	case Diagnostic:
		hook.OnDiagnostic(ctx, event)
	default:
		panic("unknown event type")
	}
}

// ChannelHook adapts a Hook to an async event sequence. Every delivery is
// pushed onto a single channel in arrival order.
type ChannelHook struct {
	ch chan Event
}

// NewChannelHook returns a hook and the receive side of its channel. The
// buffer should be at least as large as the bus subscriber buffer or the
// subscription risks being dropped as slow.
func NewChannelHook(buffer int) (*ChannelHook, <-chan Event) {
	h := &ChannelHook{ch: make(chan Event, buffer)}
	return h, h.ch
}

// Close closes the event channel. Call it only after unsubscribing.
func (h *ChannelHook) Close() { close(h.ch) }

func (h *ChannelHook) OnMessage(_ context.Context, e Message)         { h.ch <- e }
func (h *ChannelHook) OnStreamStart(_ context.Context, e StreamStart) { h.ch <- e }
func (h *ChannelHook) OnStreamChunk(_ context.Context, e StreamChunk) { h.ch <- e }
func (h *ChannelHook) OnStreamEnd(_ context.Context, e StreamEnd)     { h.ch <- e }
func (h *ChannelHook) OnStreamError(_ context.Context, e StreamError) { h.ch <- e }
func (h *ChannelHook) OnDiagnostic(_ context.Context, e Diagnostic)   { h.ch <- e }
