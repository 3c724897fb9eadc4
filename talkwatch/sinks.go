package talkwatch

import (
	"context"
	"io"
	"log/slog"

	"github.com/jwbth/talkpage/talkwatch/event"
	"github.com/jwbth/talkpage/talkwatch/internal/sink"
)

// Sink is the output interface for talkwatch events.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn func(ctx context.Context, ev event.Event) error) Sink {
	return sink.NewCallback(fn)
}
