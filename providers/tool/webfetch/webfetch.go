package webfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/aigate/internal/utils"
	"github.com/leofalp/aigate/providers/tool"
)

const (
	// DefaultTimeout bounds one fetch end to end.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies the tool to the fetched site.
	DefaultUserAgent = "aigate-webfetch/1.0"
	// MaxBodySize caps the response body read (10 MB).
	MaxBodySize = 10 * 1024 * 1024
	// maxRedirects caps redirect chains.
	maxRedirects = 10
)

// Input holds the arguments the model supplies to the tool.
type Input struct {
	// URL is the page to fetch. Partial URLs ("go.dev") get an https://
	// prefix.
	URL string `json:"url" jsonschema:"description=URL of the page to fetch; partial URLs like 'go.dev' are accepted,required"`

	// TimeoutSeconds overrides the default request timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" jsonschema:"description=Request timeout in seconds (default 30),minimum=1,maximum=300"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `json:"user_agent,omitempty" jsonschema:"description=Custom User-Agent header"`
}

// Output is the result returned to the model.
type Output struct {
	// URL is the final location after redirects.
	URL string `json:"url" jsonschema:"description=Final URL after redirects"`

	// Markdown is the page content converted from HTML.
	Markdown string `json:"markdown" jsonschema:"description=Page content converted to Markdown"`
}

// New returns the web-fetch tool: it downloads a page and converts the HTML
// to Markdown, which keeps tool results small enough to feed back into a
// model turn.
func New() (*tool.Tool[Input, Output], error) {
	return tool.New("web_fetch", Fetch,
		tool.WithDescription("Fetches a web page and returns its content converted to Markdown. Accepts partial URLs and follows redirects."),
	)
}

// Fetch downloads req.URL and converts the body to Markdown. Non-200
// statuses, bodies over MaxBodySize, and conversion failures are errors; the
// caller typically feeds them back to the model as a tool-result turn.
func Fetch(ctx context.Context, req Input) (Output, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return Output{}, fmt.Errorf("url must not be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	timeout := DefaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Output{}, fmt.Errorf("failed to build request: %w", err)
	}
	userAgent := DefaultUserAgent
	if req.UserAgent != "" {
		userAgent = req.UserAgent
	}
	httpReq.Header.Set("User-Agent", userAgent)

	response, err := fetchClient(timeout).Do(httpReq)
	if err != nil {
		return Output{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer utils.CloseWithLog(response.Body)

	if response.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("unexpected status %d fetching %s", response.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, MaxBodySize))
	if err != nil {
		return Output{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) == MaxBodySize {
		return Output{}, fmt.Errorf("response body exceeds %d bytes", MaxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return Output{}, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	return Output{
		URL:      response.Request.URL.String(),
		Markdown: markdown,
	}, nil
}

// fetchClient builds an HTTP client with per-phase timeouts so a stalled
// server cannot hold the tool past its budget.
func fetchClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (>%d)", maxRedirects)
			}
			return nil
		},
	}
}
