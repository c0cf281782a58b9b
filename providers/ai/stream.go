package ai

import (
	"iter"
	"strings"
)

// EventStream wraps a streaming iterator over the unified event protocol.
// It supports range-based iteration for real-time processing and a
// convenience Collect() method for callers who want the complete response.
//
// Important: callers must consume the stream, either by iterating with Iter()
// (including breaking out of the loop early) or by calling Collect(). The
// underlying adapter may hold open resources (such as an HTTP response body)
// that are only released when the iterator completes or is abandoned via a
// loop break.
type EventStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewEventStream creates an EventStream from a raw iterator. The iterator
// yields StreamEvent values (with nil error) for normal events, and may yield
// a non-nil error to signal a mid-stream failure that the adapter could not
// degrade into an inline error event.
func NewEventStream(iterator iter.Seq2[StreamEvent, error]) *EventStream {
	return &EventStream{iterator: iterator}
}

// NewSingleMessageStream wraps an already-complete ChatResponse as a stream.
// Used as a fallback when an adapter does not support streaming: the whole
// answer is delivered as one delta, the terminal message_complete, any tool
// calls, and the cost snapshot.
func NewSingleMessageStream(response *ChatResponse) *EventStream {
	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		if response.Content != "" {
			if !yield(StreamEvent{
				Type:      EventMessageDelta,
				MessageID: response.MessageID,
				Order:     0,
				Content:   response.Content,
			}, nil) {
				return
			}
		}

		if !yield(StreamEvent{
			Type:      EventMessageComplete,
			MessageID: response.MessageID,
			Content:   response.Content,
			Thinking:  response.Thinking,
		}, nil) {
			return
		}

		for i := range response.ToolCalls {
			if !yield(StreamEvent{Type: EventToolStart, MessageID: response.MessageID, ToolCall: &response.ToolCalls[i]}, nil) {
				return
			}
		}

		for i := range response.Files {
			if !yield(StreamEvent{Type: EventFileComplete, MessageID: response.MessageID, File: &response.Files[i]}, nil) {
				return
			}
		}

		if response.Cost != nil {
			yield(StreamEvent{Type: EventCostUpdate, Cost: response.Cost}, nil)
		}
	}

	return NewEventStream(iteratorFunc)
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
// Example:
//
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(event.Content)
//	}
func (stream *EventStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated response.
// Any mid-stream error terminates collection and returns the partial response
// together with the error; a fatal inline error event does the same.
func (stream *EventStream) Collect() (*ChatResponse, error) {
	accumulated := &ChatResponse{}
	var content strings.Builder

	for event, err := range stream.iterator {
		if err != nil {
			accumulated.Content = content.String()
			return accumulated, err
		}

		switch event.Type {
		case EventMessageDelta:
			content.WriteString(event.Content)
			if accumulated.MessageID == "" {
				accumulated.MessageID = event.MessageID
			}

		case EventMessageComplete:
			// The terminal event is authoritative for the full content.
			content.Reset()
			content.WriteString(event.Content)
			accumulated.MessageID = event.MessageID
			if event.Thinking != "" {
				accumulated.Thinking = event.Thinking
			}

		case EventToolStart:
			if event.ToolCall != nil {
				accumulated.ToolCalls = append(accumulated.ToolCalls, *event.ToolCall)
			}

		case EventToolDelta:
			// Placeholder while arguments stream in; the real call arrives
			// as tool_start.

		case EventFileComplete:
			if event.File != nil {
				accumulated.Files = append(accumulated.Files, *event.File)
			}

		case EventCostUpdate:
			if event.Cost != nil {
				accumulated.Cost = event.Cost
				accumulated.Model = event.Cost.Model
			}

		case EventError:
			if event.Err != nil && event.Err.Fatal {
				accumulated.Content = content.String()
				return accumulated, event.Err
			}
		}
	}

	accumulated.Content = content.String()
	return accumulated, nil
}
