package handlers

import (
	"context"
	"errors"
	"sync"
)

// ErrNoCapture is returned by CaptureChannel.Send outside WithCapture.
var ErrNoCapture = errors.New("capture: no collector in context")

// Capture collects the messages a gate sends during one request.
type Capture struct {
	mu      sync.Mutex
	replies []string
}

// Replies returns a copy of the collected messages in send order.
func (c *Capture) Replies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.replies...)
}

type captureKey struct{}

// WithCapture returns a context whose CaptureChannel sends land in the
// returned Capture.
func WithCapture(ctx context.Context) (context.Context, *Capture) {
	c := &Capture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

// CaptureChannel is a services.Channel that buffers replies in the request
// context instead of delivering them.
type CaptureChannel struct{}

// Send appends text to the context's Capture.
func (CaptureChannel) Send(ctx context.Context, _ string, text string) error {
	c, _ := ctx.Value(captureKey{}).(*Capture)
	if c == nil {
		return ErrNoCapture
	}
	c.mu.Lock()
	c.replies = append(c.replies, text)
	c.mu.Unlock()
	return nil
}

// Typing is a no-op.
func (CaptureChannel) Typing(context.Context, string) func() { return func() {} }
