package sink

import (
	"context"

	"github.com/jwbth/talkpage/talkwatch/event"
)

// EventFunc is called for each event, in-process.
type EventFunc func(ctx context.Context, ev event.Event) error

// Callback delivers events via a Go function call. Useful when the
// consumer lives in the same binary; zero serialisation.
type Callback struct {
	fn EventFunc
}

// NewCallback creates a Callback sink. A nil handler drops events.
func NewCallback(fn EventFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, ev event.Event) error {
	if c.fn != nil {
		return c.fn(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
