// Package anthropic adapts the Anthropic Messages API to the unified
// streaming event protocol, using the official Go SDK for transport.
//
// The main entry point is [New], which reads ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL from the environment. Use [Provider.WithAPIKey] and
// [Provider.WithBaseURL] to override these values programmatically.
//
// Streaming is available through [Provider.StreamMessage], which returns an
// [ai.EventStream] over the unified events. Tool use is always native:
// tool_use content blocks surface as a placeholder tool_delta when the block
// opens and a validated tool_start when it closes.
package anthropic
