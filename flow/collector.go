package flow

import (
	"context"

	"github.com/faceproof/faceproof/proto"
)

// collector drives one session's event stream to its first terminal
// event. The constructor subscribes before starting transmission, so
// callers cannot reorder the two.
type collector struct {
	sink     EventSink
	terminal chan Event
}

func newCollector(ctx context.Context, session Session, sink EventSink) (*collector, error) {
	events := session.Events()

	c := &collector{
		sink:     sink,
		terminal: make(chan Event, 1),
	}
	go c.collect(ctx, events)

	if err := session.Start(ctx); err != nil {
		return nil, proto.ErrSessionError.WithCausef("start session: %w", err)
	}
	return c, nil
}

func (c *collector) collect(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			// Deliver to the sink before terminal inspection, in
			// arrival order, at most once per event.
			if c.sink != nil {
				c.sink(ev)
			}
			if ev.Kind.Terminal() {
				c.terminal <- ev
				// First terminal exhausts the stream, even if the
				// underlying session keeps emitting.
				return
			}
		}
	}
}

// Wait blocks until the first terminal event or cancellation.
func (c *collector) Wait(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev := <-c.terminal:
		return ev, nil
	}
}
