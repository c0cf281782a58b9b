// Package queue serializes asynchronous work per logical owner key. The
// gateway uses it to guarantee that an agent's tool invocations, which may
// have ordering-sensitive side effects, are applied in the order the model
// requested them even when the gateway issues them concurrently. Work under
// different keys runs fully concurrently.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrCleared rejects tasks that were still pending when their owner's queue
// was cleared. The task's function is never invoked.
var ErrCleared = errors.New("queue cleared before task started")

// Task is a unit of queued work.
type Task func(ctx context.Context) (any, error)

// Result is the settled outcome of a queued task.
type Result struct {
	Value any
	Err   error
}

// entry is one pending unit of work for an owner.
type entry struct {
	ctx  context.Context
	task Task
	done chan Result // buffered, written exactly once
}

// Queue runs tasks strictly in submission order per owner key, one at a
// time, and fully concurrently across keys. A failing task only rejects its
// own caller; later tasks for the same key still run.
type Queue struct {
	mu     sync.Mutex
	owners map[string]*ownerState
}

// ownerState holds the pending entries for one key plus whether a worker
// goroutine is currently draining them.
type ownerState struct {
	pending []*entry
	running bool
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{owners: make(map[string]*ownerState)}
}

// Submit appends a task to the owner's queue and returns a channel that
// receives exactly one Result when the task settles. The task starts only
// after every earlier task for the same key has settled.
func (q *Queue) Submit(ctx context.Context, ownerKey string, task Task) <-chan Result {
	e := &entry{ctx: ctx, task: task, done: make(chan Result, 1)}

	q.mu.Lock()
	state, ok := q.owners[ownerKey]
	if !ok {
		state = &ownerState{}
		q.owners[ownerKey] = state
	}
	state.pending = append(state.pending, e)
	if !state.running {
		state.running = true
		go q.drain(ownerKey)
	}
	q.mu.Unlock()

	return e.done
}

// Run submits a task and blocks until it settles or ctx is cancelled.
// Cancellation abandons the wait, not the queue: a task already started
// observes the cancellation through its own ctx.
func (q *Queue) Run(ctx context.Context, ownerKey string, task Task) (any, error) {
	select {
	case result := <-q.Submit(ctx, ownerKey, task):
		return result.Value, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain executes the owner's pending entries one at a time until none are
// left, then retires the worker.
func (q *Queue) drain(ownerKey string) {
	for {
		q.mu.Lock()
		state := q.owners[ownerKey]
		if state == nil || len(state.pending) == 0 {
			if state != nil {
				state.running = false
				delete(q.owners, ownerKey)
			}
			q.mu.Unlock()
			return
		}
		e := state.pending[0]
		state.pending = state.pending[1:]
		q.mu.Unlock()

		q.execute(e)
	}
}

// execute settles a single entry. A cancelled submission context rejects the
// entry without invoking its task.
func (q *Queue) execute(e *entry) {
	if err := e.ctx.Err(); err != nil {
		e.done <- Result{Err: err}
		return
	}

	value, err := e.task(e.ctx)
	e.done <- Result{Value: value, Err: err}
}

// Clear rejects every not-yet-started task for the key with ErrCleared. A
// task already in flight is not interrupted and settles normally.
func (q *Queue) Clear(ownerKey string) {
	q.mu.Lock()
	state := q.owners[ownerKey]
	var cleared []*entry
	if state != nil {
		cleared = state.pending
		state.pending = nil
	}
	q.mu.Unlock()

	for _, e := range cleared {
		e.done <- Result{Err: ErrCleared}
	}
}

// ClearAll clears every owner's pending tasks.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	var cleared []*entry
	for _, state := range q.owners {
		cleared = append(cleared, state.pending...)
		state.pending = nil
	}
	q.mu.Unlock()

	for _, e := range cleared {
		e.done <- Result{Err: ErrCleared}
	}
}

// PendingCount reports how many tasks are queued (not yet started) for the
// key. Intended for tests and introspection.
func (q *Queue) PendingCount(ownerKey string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	state := q.owners[ownerKey]
	if state == nil {
		return 0
	}
	return len(state.pending)
}
