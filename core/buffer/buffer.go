// Package buffer smooths extremely fine-grained vendor chunking into fewer,
// larger caller-visible message deltas. Some vendors stream single characters
// per chunk; forwarding each one as its own event floods downstream consumers
// for no benefit.
package buffer

import (
	"strings"

	"github.com/leofalp/aigate/providers/ai"
)

// DefaultThreshold is the accumulated length, in bytes, at which a pending
// fragment run is released as a message_delta.
const DefaultThreshold = 24

// Buffer accumulates text fragments for one message id and releases them as
// message_delta events once the pending length crosses the threshold, or on
// an explicit Flush at stream end.
//
// Invariant: the concatenation of every released delta equals the
// concatenation of every written fragment. Buffering never drops or reorders
// bytes; Total() exposes the running full content for the terminal
// message_complete event.
type Buffer struct {
	messageID string
	threshold int

	pending strings.Builder
	total   strings.Builder
	order   int
}

// New creates a Buffer for the given message id. A threshold <= 0 selects
// DefaultThreshold.
func New(messageID string, threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Buffer{messageID: messageID, threshold: threshold}
}

// Write appends a fragment. When the pending run crosses the threshold it is
// released as a single message_delta event and ok is true; otherwise the
// fragment stays buffered and ok is false.
func (b *Buffer) Write(fragment string) (event ai.StreamEvent, ok bool) {
	b.pending.WriteString(fragment)
	b.total.WriteString(fragment)

	if b.pending.Len() < b.threshold {
		return ai.StreamEvent{}, false
	}
	return b.release()
}

// Flush releases whatever is pending, if anything. Call once at stream end
// before emitting message_complete.
func (b *Buffer) Flush() (event ai.StreamEvent, ok bool) {
	if b.pending.Len() == 0 {
		return ai.StreamEvent{}, false
	}
	return b.release()
}

func (b *Buffer) release() (ai.StreamEvent, bool) {
	event := ai.StreamEvent{
		Type:      ai.EventMessageDelta,
		MessageID: b.messageID,
		Order:     b.order,
		Content:   b.pending.String(),
	}
	b.order++
	b.pending.Reset()
	return event, true
}

// Total returns the full content written so far, released or not.
func (b *Buffer) Total() string {
	return b.total.String()
}

// MessageID returns the message id this buffer belongs to.
func (b *Buffer) MessageID() string {
	return b.messageID
}

// NextOrder returns the order value the next released delta will carry.
func (b *Buffer) NextOrder() int {
	return b.order
}
