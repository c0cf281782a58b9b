package ai

import (
	"context"
	"sync"
)

// Control is the pause/resume token threaded through adapter calls. Adapters
// poll it between chunks: while paused, chunk processing suspends (without
// abandoning the underlying connection) until Resume is called or the
// request's context is cancelled. Each gateway owns one Control; it is passed
// through the context rather than held as module-level state so concurrent
// gateways stay isolated.
type Control struct {
	mu      sync.Mutex
	resumed chan struct{} // closed while running; open (blocking) while paused
}

// NewControl returns a Control in the running (unpaused) state.
func NewControl() *Control {
	c := &Control{resumed: make(chan struct{})}
	close(c.resumed)
	return c
}

// Pause suspends chunk processing for every stream holding this token.
// Idempotent.
func (c *Control) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.resumed:
		// Currently running; swap in an open channel to block waiters.
		c.resumed = make(chan struct{})
	default:
		// Already paused.
	}
}

// Resume releases every stream blocked in Wait. Idempotent.
func (c *Control) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.resumed:
		// Already running.
	default:
		close(c.resumed)
	}
}

// Paused reports the current state.
func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.resumed:
		return false
	default:
		return true
	}
}

// Wait blocks while the token is paused. It returns nil once running, or
// ctx.Err() if the context is cancelled first. A nil receiver never blocks,
// so adapters can call Wait unconditionally.
func (c *Control) Wait(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}

	c.mu.Lock()
	resumed := c.resumed
	c.mu.Unlock()

	select {
	case <-resumed:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

type controlContextKey struct{}

// ContextWithControl returns a context carrying the given pause token.
func ContextWithControl(ctx context.Context, control *Control) context.Context {
	return context.WithValue(ctx, controlContextKey{}, control)
}

// ControlFromContext extracts the pause token from the context. Returns nil
// when absent; a nil Control is safe to use and never pauses.
func ControlFromContext(ctx context.Context) *Control {
	if ctx == nil {
		return nil
	}
	control, _ := ctx.Value(controlContextKey{}).(*Control)
	return control
}
