package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leofalp/aigate/providers/observability"
)

// StatusError reports a non-2xx HTTP response. It carries the status code as
// a typed field so the retry engine can classify it without string matching.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, TruncateString(e.Body, 500))
}

// HeaderOption sets one request header. Custom headers are applied after the
// defaults, so a provider can override Authorization with its own scheme.
type HeaderOption struct {
	Key   string
	Value string
}

// maxResponseBodySize caps body reads (10 MB) so a rogue response cannot
// allocate unbounded memory.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// DoPostSync performs a synchronous HTTP POST with a JSON body and decodes
// the JSON response into OutputStruct. Non-2xx responses return a
// *StatusError with the body attached. The response body is always closed.
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*OutputStruct, error) {
	response, err := send(ctx, client, url, apiKey, body, false, headers...)
	if err != nil {
		return nil, err
	}
	defer CloseWithLog(response.Body)

	respBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body (status %d): %w\nResponse preview: %s",
			response.StatusCode, err, TruncateString(string(respBody), 500))
	}
	return &resStruct, nil
}

// DoPostStream performs an HTTP POST and returns the response with its body
// left open for SSE reading. The caller owns closing the body. Non-2xx
// responses are drained, closed, and returned as a *StatusError.
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, error) {
	return send(ctx, client, url, apiKey, body, true, headers...)
}

// send is the shared POST path. For stream requests a 2xx response body is
// left open; everything else is consumed here.
func send(ctx context.Context, client *http.Client, url string, apiKey string, body any, stream bool, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent("http.request.error",
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if span != nil {
		span.AddEvent("http.response.received",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			return nil, &StatusError{StatusCode: response.StatusCode, Body: fmt.Sprintf("(failed to read body: %v)", readErr)}
		}
		return nil, &StatusError{StatusCode: response.StatusCode, Body: string(errorBody)}
	}

	return response, nil
}

// CloseWithLog closes the given closer, logging (not returning) any close
// error so it never masks a primary error.
func CloseWithLog(closer io.Closer) {
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}
