package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across different components of the system.

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the name of the LLM provider (e.g., "openai", "anthropic")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier (e.g., "gpt-4", "claude-3")
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMRequestID is the unique request identifier from the provider
	AttrLLMRequestID = "llm.request.id"

	// AttrLLMResponseID is the unique response identifier from the provider
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMTemperature is the sampling temperature used
	AttrLLMTemperature = "llm.temperature"

	// AttrLLMMaxTokens is the maximum tokens allowed
	AttrLLMMaxTokens = "llm.max_tokens" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Token Usage and Cost Attributes ---

const (
	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrCostUSD is the resolved request cost in US dollars
	AttrCostUSD = "cost.usd"

	// AttrCostEstimated indicates the cost was computed from estimated usage
	AttrCostEstimated = "cost.estimated"
)

// --- Tool Attributes ---

const (
	// AttrToolName is the name of the tool being called
	AttrToolName = "tool.name"

	// AttrToolCallID is the provider-assigned or synthesized tool call id
	AttrToolCallID = "tool.call.id"

	// AttrToolSimulated indicates the call was extracted from text rather
	// than delivered as a native tool call
	AttrToolSimulated = "tool.simulated"
)

// --- Stream Attributes ---

const (
	// AttrStreamEventType is the unified event type being emitted
	AttrStreamEventType = "stream.event.type"

	// AttrStreamMessageID is the message the event belongs to
	AttrStreamMessageID = "stream.message.id"

	// AttrStreamEventOrder is the per-message event sequence number
	AttrStreamEventOrder = "stream.event.order"
)

// --- Retry Attributes ---

const (
	// AttrRetryAttempt is the 1-based attempt number that just failed
	AttrRetryAttempt = "retry.attempt"

	// AttrRetryDelay is the backoff delay before the next attempt
	AttrRetryDelay = "retry.delay"

	// AttrRetryCommitted indicates events already reached the consumer,
	// which forbids further retries
	AttrRetryCommitted = "retry.committed"
)

// --- Queue Attributes ---

const (
	// AttrQueueOwner is the owner key the task was serialized under
	AttrQueueOwner = "queue.owner"

	// AttrQueueDepth is the number of tasks pending for the owner
	AttrQueueDepth = "queue.depth"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method (GET, POST, etc.)
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- Request Attributes ---

const (
	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"

	// AttrRequestToolsCount is the number of tools in the request
	AttrRequestToolsCount = "request.tools_count"

	// AttrRequestCorrelationID is the gateway-assigned correlation id
	AttrRequestCorrelationID = "request.correlation_id"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrErrorType is the error type/class
	AttrErrorType = "error.type"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrStatusDescription is the status description
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	// SpanGatewayStream is the span name for a gateway streaming request
	SpanGatewayStream = "gateway.stream"

	// SpanLLMRequest is the span name for LLM API requests
	SpanLLMRequest = "llm.request"

	// SpanQueueTask is the span name for serialized queue task execution
	SpanQueueTask = "queue.task"
)

// --- Event Names ---

const (
	// EventLLMRequestStart marks the start of an LLM request
	EventLLMRequestStart = "llm.request.start"

	// EventLLMRequestEnd marks the end of an LLM request
	EventLLMRequestEnd = "llm.request.end"

	// EventRetryScheduled marks a retry being scheduled after a transient failure
	EventRetryScheduled = "retry.scheduled"

	// EventTokensReceived marks when tokens are received from LLM
	EventTokensReceived = "llm.tokens.received" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// EventSimulatedToolCall marks a tool call extracted from message text
	EventSimulatedToolCall = "tool.simulated_call"
)

// --- Metric Names ---

const (
	// MetricGatewayRequestCount is the counter for gateway requests
	MetricGatewayRequestCount = "aigate.gateway.request.count"

	// MetricGatewayRequestDuration is the histogram for request duration
	MetricGatewayRequestDuration = "aigate.gateway.request.duration"

	// MetricGatewayTokensTotal is the counter for total tokens
	MetricGatewayTokensTotal = "aigate.gateway.tokens.total"

	// MetricGatewayCostUSD is the histogram for resolved request cost
	MetricGatewayCostUSD = "aigate.gateway.cost.usd"

	// MetricGatewayRetryCount is the counter for retry attempts
	MetricGatewayRetryCount = "aigate.gateway.retry.count"
)
