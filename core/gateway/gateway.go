package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leofalp/aigate/catalog"
	"github.com/leofalp/aigate/core/queue"
	"github.com/leofalp/aigate/core/retry"
	"github.com/leofalp/aigate/providers/ai"
	"github.com/leofalp/aigate/providers/observability"
)

// ErrNoProvider is returned when a model resolves to a vendor that has no
// registered adapter.
var ErrNoProvider = errors.New("no provider registered for vendor")

// defaultMaxImageBytes is the inline-image size handed to the transcoder.
// Vendors cap inline payloads around this point; anything larger must come
// back re-encoded.
const defaultMaxImageBytes = 5 << 20

// defaultOwnerKey serializes tasks from requests that never set an AgentID.
const defaultOwnerKey = "default"

// Gateway is the entry point of the pipeline: it resolves a model name to a
// vendor adapter through the catalog, runs request media through the
// transcoder, drives the adapter stream under the retry supervisor, and owns
// the per-agent sequential queue used for tool execution ordering.
type Gateway struct {
	providers  map[string]ai.StreamProvider
	catalog    *catalog.Catalog
	queue      *queue.Queue
	policy     retry.Policy
	transcoder ai.Transcoder

	maxImageBytes int
}

// New creates a gateway over the embedded default catalog with the given
// adapters registered. Every knob has a working default; builders below
// override them.
func New(providers ...ai.StreamProvider) *Gateway {
	g := &Gateway{
		providers:     make(map[string]ai.StreamProvider),
		catalog:       catalog.Default(),
		queue:         queue.New(),
		transcoder:    ai.PassthroughTranscoder{},
		maxImageBytes: defaultMaxImageBytes,
	}
	for _, provider := range providers {
		g.Register(provider)
	}
	return g
}

// Register adds or replaces the adapter serving a vendor name. The catalog's
// ModelEntry.Vendor values resolve against provider.Name().
func (g *Gateway) Register(provider ai.StreamProvider) *Gateway {
	g.providers[provider.Name()] = provider
	return g
}

// WithCatalog replaces the model registry.
func (g *Gateway) WithCatalog(c *catalog.Catalog) *Gateway {
	g.catalog = c
	return g
}

// WithRetryPolicy replaces the stream retry policy.
func (g *Gateway) WithRetryPolicy(policy retry.Policy) *Gateway {
	g.policy = policy
	return g
}

// WithTranscoder replaces the media transcoder applied to request images.
func (g *Gateway) WithTranscoder(transcoder ai.Transcoder) *Gateway {
	g.transcoder = transcoder
	return g
}

// WithMaxImageBytes overrides the size limit handed to the transcoder.
func (g *Gateway) WithMaxImageBytes(limit int) *Gateway {
	if limit > 0 {
		g.maxImageBytes = limit
	}
	return g
}

// route resolves a model name (id, alias, or intensity-suffixed variant) to
// its catalog entry and registered adapter. An unknown model fails loudly;
// a known model whose vendor has no adapter does too.
func (g *Gateway) route(model string) (*catalog.ModelEntry, ai.StreamProvider, error) {
	entry, err := g.catalog.FindModel(model)
	if err != nil {
		return nil, nil, err
	}
	provider, ok := g.providers[entry.Vendor]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q (model %q)", ErrNoProvider, entry.Vendor, entry.ID)
	}
	return entry, provider, nil
}

// transcodeImages runs every inline image through the transcoder before the
// request reaches an adapter. The gateway never inspects the result; the
// transcoder is an opaque boundary.
func (g *Gateway) transcodeImages(ctx context.Context, request ai.ChatRequest) (ai.ChatRequest, error) {
	for m := range request.Messages {
		for i := range request.Messages[m].Images {
			transcoded, err := g.transcoder.Transcode(ctx, request.Messages[m].Images[i], g.maxImageBytes)
			if err != nil {
				return request, fmt.Errorf("failed to transcode request image: %w", err)
			}
			request.Messages[m].Images[i] = transcoded
		}
	}
	return request, nil
}

// Stream resolves the request's model, transcodes its media, and returns the
// retry-supervised event stream for it. Events are forwarded from the adapter
// unchanged; the supervisor re-runs the adapter from scratch only while
// nothing has reached the caller yet.
func (g *Gateway) Stream(ctx context.Context, request ai.ChatRequest) (*ai.EventStream, error) {
	entry, provider, err := g.route(request.Model)
	if err != nil {
		return nil, err
	}
	// Canonical id from here on, so cost updates and logs agree on the name.
	request.Model = entry.ID

	request, err = g.transcodeImages(ctx, request)
	if err != nil {
		return nil, err
	}

	observer := observability.ObserverFromContext(ctx)
	ctx, span := observer.StartSpan(ctx, observability.SpanGatewayStream,
		observability.String(observability.AttrLLMProvider, provider.Name()),
		observability.String(observability.AttrLLMModel, entry.ID),
		observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
	)
	observer.Counter(observability.MetricGatewayRequestCount).Add(ctx, 1,
		observability.String(observability.AttrLLMProvider, provider.Name()),
		observability.String(observability.AttrLLMModel, entry.ID),
	)

	policy := g.policy
	wrapped := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, retryErr error) {
		span.AddEvent(observability.EventRetryScheduled,
			observability.Int(observability.AttrRetryAttempt, attempt),
			observability.Duration(observability.AttrRetryDelay, delay),
			observability.Error(retryErr),
		)
		observer.Counter(observability.MetricGatewayRetryCount).Add(ctx, 1,
			observability.String(observability.AttrLLMProvider, provider.Name()),
		)
		observer.Warn(ctx, "Retrying provider stream after transient failure",
			observability.Int(observability.AttrRetryAttempt, attempt),
			observability.Duration(observability.AttrRetryDelay, delay),
			observability.Error(retryErr),
		)
		if wrapped != nil {
			wrapped(attempt, delay, retryErr)
		}
	}

	factory := g.streamFactory(entry, provider, request)
	supervised := retry.Stream(ctx, policy, factory)
	return g.observeStream(ctx, span, observer, entry.ID, supervised), nil
}

// streamFactory builds one fresh attempt of the upstream stream. Models the
// catalog marks non-streaming fall back to the synchronous endpoint wrapped
// as a single-message stream; the retry supervisor treats both the same way.
func (g *Gateway) streamFactory(entry *catalog.ModelEntry, provider ai.StreamProvider, request ai.ChatRequest) retry.StreamFactory {
	if !entry.Features.Streaming {
		return func(ctx context.Context) (*ai.EventStream, error) {
			response, err := provider.SendMessage(ctx, request)
			if err != nil {
				return nil, err
			}
			return ai.NewSingleMessageStream(response), nil
		}
	}
	return func(ctx context.Context) (*ai.EventStream, error) {
		return provider.StreamMessage(ctx, request)
	}
}

// observeStream forwards the supervised stream to the caller while closing
// out the span and recording usage metrics from the final cost snapshot.
func (g *Gateway) observeStream(ctx context.Context, span observability.Span, observer observability.Provider, modelID string, stream *ai.EventStream) *ai.EventStream {
	start := time.Now()

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer func() {
			observer.Histogram(observability.MetricGatewayRequestDuration).Record(ctx, time.Since(start).Seconds(),
				observability.String(observability.AttrLLMModel, modelID),
			)
			span.End()
		}()

		for event, err := range stream.Iter() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, err.Error())
				yield(ai.StreamEvent{}, err)
				return
			}

			if event.Type == ai.EventCostUpdate && event.Cost != nil {
				span.SetAttributes(
					observability.Int(observability.AttrLLMTokensTotal, event.Cost.Usage.TotalTokens),
					observability.Float64(observability.AttrCostUSD, event.Cost.Cost),
					observability.Bool(observability.AttrCostEstimated, event.Cost.Estimated),
				)
				observer.Counter(observability.MetricGatewayTokensTotal).Add(ctx, int64(event.Cost.Usage.TotalTokens),
					observability.String(observability.AttrLLMModel, modelID),
				)
				observer.Histogram(observability.MetricGatewayCostUSD).Record(ctx, event.Cost.Cost,
					observability.String(observability.AttrLLMModel, modelID),
				)
			}

			if !yield(event, nil) {
				return
			}
		}
		span.SetStatus(observability.StatusOK, "")
	}

	return ai.NewEventStream(iteratorFunc)
}

// Send is the synchronous entry point: it drives Stream to completion and
// returns the accumulated response. Retry supervision and cost accounting
// apply exactly as in the streaming path.
func (g *Gateway) Send(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	stream, err := g.Stream(ctx, request)
	if err != nil {
		return nil, err
	}
	return stream.Collect()
}

// RunSequential executes task under the agent's queue lane: tasks for the
// same agent run strictly in submission order, different agents run fully
// concurrently. Tool invocations requested by a model go through here so
// their side effects apply in the order the model asked for them.
func (g *Gateway) RunSequential(ctx context.Context, agentID string, task queue.Task) (any, error) {
	observer := observability.ObserverFromContext(ctx)
	ctx, span := observer.StartSpan(ctx, observability.SpanQueueTask,
		observability.String(observability.AttrQueueOwner, ownerKey(agentID)),
	)
	defer span.End()

	result, err := g.queue.Run(ctx, ownerKey(agentID), task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(observability.StatusError, err.Error())
		return result, err
	}
	span.SetStatus(observability.StatusOK, "")
	return result, nil
}

// SubmitSequential enqueues task for the agent without waiting for it. The
// returned channel delivers the settled result.
func (g *Gateway) SubmitSequential(ctx context.Context, agentID string, task queue.Task) <-chan queue.Result {
	return g.queue.Submit(ctx, ownerKey(agentID), task)
}

// ClearAgent rejects every not-yet-started task queued for the agent with
// queue.ErrCleared. A task already in flight is not interrupted.
func (g *Gateway) ClearAgent(agentID string) {
	g.queue.Clear(ownerKey(agentID))
}

// ClearAllAgents clears every agent's pending tasks.
func (g *Gateway) ClearAllAgents() {
	g.queue.ClearAll()
}

// PendingTasks reports how many tasks are waiting (not running) for an agent.
func (g *Gateway) PendingTasks(agentID string) int {
	return g.queue.PendingCount(ownerKey(agentID))
}

func ownerKey(agentID string) string {
	if agentID == "" {
		return defaultOwnerKey
	}
	return agentID
}
