// Package retry re-executes stream-producing operations on transient failure
// under an at-most-once delivery contract: a stream is only re-run from
// scratch while zero events have reached the consumer. The instant one event
// has been forwarded, a later failure propagates as-is, because re-running
// the upstream producer after partial output would duplicate already
// delivered content and side effects such as tool execution. This is a hard
// invariant of the gateway, not an optimization.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/ai"
)

// ErrExhausted wraps the last provider error once every permitted attempt
// has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// defaultRetryableStatuses are the HTTP statuses treated as transient:
// request timeout, rate limiting, server errors, and the Cloudflare
// connection statuses some providers sit behind.
var defaultRetryableStatuses = map[int]bool{
	408: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
	522: true, 524: true, 529: true,
}

// defaultRetryableMessages are provider-specific transient failure texts that
// arrive without a typed error.
var defaultRetryableMessages = []string{
	"incomplete JSON segment",
	"fetch failed",
	"connection reset by peer",
	"unexpected EOF",
}

// Policy holds the tuning parameters for the retry engine. Zero values are
// replaced with the defaults documented per field.
type Policy struct {
	// MaxRetries is the number of retry attempts after the first failure.
	// A value of 3 means the factory is called at most 4 times. Zero takes
	// the default of 3; a negative value disables retries entirely, so the
	// factory runs exactly once.
	MaxRetries int

	// InitialDelay is the wait before the first retry. Default: 1s.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff. Default: 30s.
	MaxDelay time.Duration

	// BackoffFactor is the exponential growth multiplier
	// (delay = min(MaxDelay, InitialDelay * BackoffFactor^(attempt-1))).
	// Default: 2.0.
	BackoffFactor float64

	// JitterFraction scales the random noise applied to each delay; the
	// final delay is multiplied by a factor uniform in [1-j, 1+j].
	// Default: 0.1.
	JitterFraction float64

	// ExtraStatuses extends the default retryable HTTP status set.
	ExtraStatuses []int

	// ExtraMessages extends the default retryable message substrings.
	ExtraMessages []string

	// OnRetry, when set, is invoked before each retry sleep with the
	// 1-based attempt number that just failed and its error.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep is injectable for tests. The default honors ctx cancellation
	// while sleeping.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	} else if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay == 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.BackoffFactor == 0 {
		p.BackoffFactor = 2.0
	}
	if p.JitterFraction == 0 {
		p.JitterFraction = 0.1
	}
	if p.Sleep == nil {
		p.Sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return p
}

// delayFor computes the backoff before retry `attempt` (1-based).
func (p Policy) delayFor(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if base > float64(p.MaxDelay) {
		base = float64(p.MaxDelay)
	}
	jitter := 1 + p.JitterFraction*(2*rand.Float64()-1) //nolint:gosec // non-cryptographic jitter
	return time.Duration(base * jitter)
}

// Retryable classifies an error as transient under this policy. Context
// cancellation is never retryable: the caller asked to stop.
func (p Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Typed HTTP status from the transport layer.
	var statusErr *utils.StatusError
	if errors.As(err, &statusErr) {
		if defaultRetryableStatuses[statusErr.StatusCode] {
			return true
		}
		for _, status := range p.ExtraStatuses {
			if statusErr.StatusCode == status {
				return true
			}
		}
		// Remaining 4xx (auth, validation) are permanent.
		return false
	}

	// Transport-level network failures.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Provider-specific transient failure texts.
	message := err.Error()
	for _, fragment := range defaultRetryableMessages {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	for _, fragment := range p.ExtraMessages {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

// StreamFactory produces one fresh attempt of the underlying stream.
type StreamFactory func(ctx context.Context) (*ai.EventStream, error)

// Stream wraps factory with the retrying supervisor. Attempts are made
// lazily when the returned stream is iterated.
//
// Failure handling per attempt:
//   - the factory itself fails (pre-stream): classify; retry with backoff
//     while attempts remain, otherwise propagate wrapped in ErrExhausted.
//   - the produced stream fails before yielding anything downstream: same
//     as a factory failure.
//   - the produced stream fails after at least one event reached the
//     consumer: propagate immediately, never retry (at-most-once).
func Stream(ctx context.Context, policy Policy, factory StreamFactory) *ai.EventStream {
	policy = policy.withDefaults()

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		committed := false
		var lastErr error

		for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
			if attempt > 1 {
				delay := policy.delayFor(attempt - 1)
				if policy.OnRetry != nil {
					policy.OnRetry(attempt-1, delay, lastErr)
				}
				if err := policy.Sleep(ctx, delay); err != nil {
					yield(ai.StreamEvent{}, err)
					return
				}
			}

			stream, err := factory(ctx)
			if err != nil {
				lastErr = err
				if policy.Retryable(err) && attempt <= policy.MaxRetries {
					continue
				}
				yield(ai.StreamEvent{}, wrapExhausted(attempt, policy.MaxRetries, err))
				return
			}

			retryAttempt := false
			for event, streamErr := range stream.Iter() {
				if streamErr != nil {
					lastErr = streamErr
					if !committed && policy.Retryable(streamErr) && attempt <= policy.MaxRetries {
						// Nothing reached the consumer yet; safe to re-run
						// the producer from scratch.
						retryAttempt = true
						break
					}
					yield(ai.StreamEvent{}, wrapExhausted(attempt, policy.MaxRetries, streamErr))
					return
				}

				committed = true
				if !yield(event, nil) {
					return
				}
			}

			if !retryAttempt {
				// Stream completed normally.
				return
			}
		}

		yield(ai.StreamEvent{}, wrapExhausted(policy.MaxRetries+1, policy.MaxRetries, lastErr))
	}

	return ai.NewEventStream(iteratorFunc)
}

// wrapExhausted marks errors that consumed every attempt; a first-attempt
// permanent failure passes through untouched.
func wrapExhausted(attempt, maxRetries int, err error) error {
	if attempt > maxRetries {
		return fmt.Errorf("%w after %d retries: %w", ErrExhausted, maxRetries, err)
	}
	return err
}
