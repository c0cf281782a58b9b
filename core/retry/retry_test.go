package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/ai"
)

// noSleep replaces the backoff sleep so tests run instantly.
func noSleep(context.Context, time.Duration) error { return nil }

// eventsOf drains a stream into its events, returning the terminal error.
func eventsOf(stream *ai.EventStream) ([]ai.StreamEvent, error) {
	var events []ai.StreamEvent
	for event, err := range stream.Iter() {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// goodStream yields two deltas and a completion.
func goodStream() *ai.EventStream {
	return ai.NewEventStream(func(yield func(ai.StreamEvent, error) bool) {
		if !yield(ai.StreamEvent{Type: ai.EventMessageDelta, MessageID: "m1", Order: 0, Content: "hel"}, nil) {
			return
		}
		if !yield(ai.StreamEvent{Type: ai.EventMessageDelta, MessageID: "m1", Order: 1, Content: "lo"}, nil) {
			return
		}
		yield(ai.StreamEvent{Type: ai.EventMessageComplete, MessageID: "m1", Content: "hello"}, nil)
	})
}

// failingStream yields count events then fails with err.
func failingStream(count int, err error) *ai.EventStream {
	return ai.NewEventStream(func(yield func(ai.StreamEvent, error) bool) {
		for i := 0; i < count; i++ {
			if !yield(ai.StreamEvent{Type: ai.EventMessageDelta, MessageID: "m1", Order: i, Content: "x"}, nil) {
				return
			}
		}
		yield(ai.StreamEvent{}, err)
	})
}

func TestStream_FailTwiceThenSucceed(t *testing.T) {
	transient := &utils.StatusError{StatusCode: 503, Body: "overloaded"}

	invocations := 0
	factory := func(context.Context) (*ai.EventStream, error) {
		invocations++
		if invocations <= 2 {
			return nil, transient
		}
		return goodStream(), nil
	}

	stream := Stream(context.Background(), Policy{MaxRetries: 3, Sleep: noSleep}, factory)
	events, err := eventsOf(stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invocations != 3 {
		t.Errorf("factory invoked %d times, want 3", invocations)
	}
	if len(events) != 3 {
		t.Errorf("events = %d, want the successful stream's items exactly once", len(events))
	}
}

func TestStream_NegativeMaxRetriesDisablesRetries(t *testing.T) {
	transient := &utils.StatusError{StatusCode: 503, Body: "overloaded"}

	invocations := 0
	factory := func(context.Context) (*ai.EventStream, error) {
		invocations++
		return nil, transient
	}

	stream := Stream(context.Background(), Policy{MaxRetries: -1, Sleep: noSleep}, factory)
	if _, err := eventsOf(stream); !errors.Is(err, transient) {
		t.Errorf("error = %v, want the transient failure", err)
	}
	if invocations != 1 {
		t.Errorf("factory invoked %d times, want exactly 1", invocations)
	}
}

func TestStream_NoRetryAfterFirstYield(t *testing.T) {
	transient := &utils.StatusError{StatusCode: 502, Body: "bad gateway"}

	invocations := 0
	factory := func(context.Context) (*ai.EventStream, error) {
		invocations++
		return failingStream(1, transient), nil
	}

	stream := Stream(context.Background(), Policy{MaxRetries: 3, Sleep: noSleep}, factory)
	events, err := eventsOf(stream)

	if invocations != 1 {
		t.Errorf("factory invoked %d times, want exactly 1 (at-most-once)", invocations)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want the single pre-failure event", len(events))
	}
	if !errors.Is(err, transient) {
		t.Errorf("err = %v, want the original failure propagated", err)
	}
}

func TestStream_RetriesWhenStreamFailsBeforeFirstEvent(t *testing.T) {
	transient := &utils.StatusError{StatusCode: 429, Body: "rate limited"}

	invocations := 0
	factory := func(context.Context) (*ai.EventStream, error) {
		invocations++
		if invocations == 1 {
			return failingStream(0, transient), nil
		}
		return goodStream(), nil
	}

	stream := Stream(context.Background(), Policy{MaxRetries: 3, Sleep: noSleep}, factory)
	events, err := eventsOf(stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invocations != 2 {
		t.Errorf("factory invoked %d times, want 2", invocations)
	}
	if len(events) != 3 {
		t.Errorf("events = %d, want 3", len(events))
	}
}

func TestStream_NonRetryablePropagatesImmediately(t *testing.T) {
	authFailure := &utils.StatusError{StatusCode: 401, Body: "bad api key"}

	invocations := 0
	factory := func(context.Context) (*ai.EventStream, error) {
		invocations++
		return nil, authFailure
	}

	stream := Stream(context.Background(), Policy{MaxRetries: 3, Sleep: noSleep}, factory)
	_, err := eventsOf(stream)

	if invocations != 1 {
		t.Errorf("factory invoked %d times, want 1", invocations)
	}
	if !errors.Is(err, authFailure) {
		t.Errorf("err = %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("permanent first-attempt failure must not read as exhaustion")
	}
}

func TestStream_ExhaustionWrapsLastError(t *testing.T) {
	transient := &utils.StatusError{StatusCode: 500, Body: "boom"}

	invocations := 0
	factory := func(context.Context) (*ai.EventStream, error) {
		invocations++
		return nil, transient
	}

	stream := Stream(context.Background(), Policy{MaxRetries: 2, Sleep: noSleep}, factory)
	_, err := eventsOf(stream)

	if invocations != 3 {
		t.Errorf("factory invoked %d times, want 3 (1 + 2 retries)", invocations)
	}
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, transient) {
		t.Errorf("err = %v, want ErrExhausted wrapping the last error", err)
	}
}

func TestStream_OnRetryCallback(t *testing.T) {
	transient := &utils.StatusError{StatusCode: 503}

	var attempts []int
	policy := Policy{
		MaxRetries: 2,
		Sleep:      noSleep,
		OnRetry:    func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) },
	}

	invocations := 0
	stream := Stream(context.Background(), policy, func(context.Context) (*ai.EventStream, error) {
		invocations++
		if invocations < 3 {
			return nil, transient
		}
		return goodStream(), nil
	})
	if _, err := eventsOf(stream); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestStream_CancelledSleepStopsRetrying(t *testing.T) {
	transient := &utils.StatusError{StatusCode: 503}
	ctx, cancel := context.WithCancel(context.Background())

	invocations := 0
	stream := Stream(ctx, Policy{MaxRetries: 5}, func(context.Context) (*ai.EventStream, error) {
		invocations++
		cancel()
		return nil, transient
	})

	_, err := eventsOf(stream)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if invocations != 1 {
		t.Errorf("factory invoked %d times, want 1", invocations)
	}
}

func TestRetryable_Classification(t *testing.T) {
	policy := Policy{ExtraStatuses: []int{418}, ExtraMessages: []string{"flaky widget"}}.withDefaults()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 408", &utils.StatusError{StatusCode: 408}, true},
		{"status 429", &utils.StatusError{StatusCode: 429}, true},
		{"status 500", &utils.StatusError{StatusCode: 500}, true},
		{"status 522", &utils.StatusError{StatusCode: 522}, true},
		{"status 524", &utils.StatusError{StatusCode: 524}, true},
		{"status 400", &utils.StatusError{StatusCode: 400}, false},
		{"status 401", &utils.StatusError{StatusCode: 401}, false},
		{"status 404", &utils.StatusError{StatusCode: 404}, false},
		{"extra status", &utils.StatusError{StatusCode: 418}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"provider message", errors.New("error sending request: incomplete JSON segment"), true},
		{"fetch failed", errors.New("fetch failed"), true},
		{"extra message", errors.New("the flaky widget struck again"), true},
		{"plain error", errors.New("invalid request payload"), false},
		{"caller cancellation", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Retryable(tc.err); got != tc.want {
				t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestPolicy_DelayBackoffAndCap(t *testing.T) {
	policy := Policy{
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       400 * time.Millisecond,
		BackoffFactor:  2,
		JitterFraction: 0.1,
	}.withDefaults()

	within := func(d, base time.Duration) bool {
		low := time.Duration(float64(base) * 0.9)
		high := time.Duration(float64(base) * 1.1)
		return d >= low && d <= high
	}

	if d := policy.delayFor(1); !within(d, 100*time.Millisecond) {
		t.Errorf("delay(1) = %v", d)
	}
	if d := policy.delayFor(2); !within(d, 200*time.Millisecond) {
		t.Errorf("delay(2) = %v", d)
	}
	// Exponent would give 800ms; the cap holds it at 400ms.
	if d := policy.delayFor(4); !within(d, 400*time.Millisecond) {
		t.Errorf("delay(4) = %v, want capped near 400ms", d)
	}
}
