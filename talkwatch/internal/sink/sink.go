// Package sink defines output backends for talkwatch events.
package sink

import (
	"context"

	"github.com/jwbth/talkpage/talkwatch/event"
)

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, ev event.Event) error
	Close() error
}
