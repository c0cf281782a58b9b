package webfetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetch_ConvertsHTMLToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Title</h1><p>Some <strong>bold</strong> text.</p></body></html>`))
	}))
	defer server.Close()

	output, err := Fetch(context.Background(), Input{URL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output.Markdown, "# Title") {
		t.Errorf("markdown = %q, want heading", output.Markdown)
	}
	if !strings.Contains(output.Markdown, "**bold**") {
		t.Errorf("markdown = %q, want bold text", output.Markdown)
	}
	if output.URL != server.URL {
		t.Errorf("url = %q", output.URL)
	}
}

func TestFetch_FollowsRedirects(t *testing.T) {
	var finalURL string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>landed</p>"))
	})
	finalURL = server.URL + "/final"

	output, err := Fetch(context.Background(), Input{URL: server.URL + "/start"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.URL != finalURL {
		t.Errorf("url = %q, want %q", output.URL, finalURL)
	}
	if !strings.Contains(output.Markdown, "landed") {
		t.Errorf("markdown = %q", output.Markdown)
	}
}

func TestFetch_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := Fetch(context.Background(), Input{URL: server.URL}); err == nil {
		t.Fatalf("expected an error for a 404 response")
	}
}

func TestFetch_EmptyURL(t *testing.T) {
	if _, err := Fetch(context.Background(), Input{}); err == nil {
		t.Fatalf("expected an error for an empty URL")
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Fetch(ctx, Input{URL: server.URL}); err == nil {
		t.Fatalf("expected a cancellation error")
	}
}

func TestNew_ToolRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>hello tool</p>"))
	}))
	defer server.Close()

	fetchTool, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info := fetchTool.ToolInfo()
	if info.Name != "web_fetch" || info.Parameters == nil {
		t.Errorf("tool info = %+v", info)
	}

	arguments, _ := json.Marshal(Input{URL: server.URL})
	result, err := fetchTool.Call(context.Background(), string(arguments))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var output Output
	if err := json.Unmarshal([]byte(result), &output); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if !strings.Contains(output.Markdown, "hello tool") {
		t.Errorf("markdown = %q", output.Markdown)
	}
}
