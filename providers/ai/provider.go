package ai

import (
	"context"
	"net/http"
)

// StreamProvider is the contract every vendor adapter satisfies: translate
// one logical request into one ordered sequence of StreamEvents. Pre-stream
// errors (auth, bad request, network connect failure) are returned as a
// normal error so the caller's retry engine can classify them. Mid-stream
// errors are either degraded into inline error events (when partial content
// should still reach the caller) or yielded through the iterator (when the
// stream cannot continue).
type StreamProvider interface {
	Provider

	// StreamMessage sends a chat request and returns an EventStream yielding
	// unified events as vendor chunks arrive. Adapters assign one MessageID
	// per logical assistant message and strictly increasing Order to every
	// delta, and emit exactly one terminal message_complete (or one fatal
	// error) per MessageID.
	StreamMessage(ctx context.Context, request ChatRequest) (*EventStream, error)
}

// Provider is the non-streaming subset of the adapter contract. Adapters
// without a native synchronous endpoint implement SendMessage by collecting
// their own stream.
type Provider interface {
	// Name returns the vendor identifier ("openai", "anthropic", "gemini", ...).
	// The catalog's ModelEntry.Vendor values resolve against these names.
	Name() string

	// SendMessage sends a chat request and returns the completed response.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHTTPClient sets the HTTP client used for outbound requests.
	WithHTTPClient(httpClient *http.Client) Provider
}

// Transcoder is the media-transcoding collaborator boundary. Given a payload
// that may exceed a vendor's size limits, it returns a compliant encoded
// representation. The gateway calls it as an opaque function before handing
// payloads to an adapter; the core never inspects the result.
type Transcoder interface {
	Transcode(ctx context.Context, payload FilePayload, maxBytes int) (FilePayload, error)
}

// PassthroughTranscoder returns payloads unchanged. It is the default when
// no real transcoder is wired in.
type PassthroughTranscoder struct{}

func (PassthroughTranscoder) Transcode(_ context.Context, payload FilePayload, _ int) (FilePayload, error) {
	return payload, nil
}
