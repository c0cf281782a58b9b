// Package openai adapts OpenAI-compatible chat completion APIs to the unified
// streaming event protocol.
//
// The main entry point is [New], which reads OPENAI_API_KEY and
// OPENAI_API_BASE_URL from the environment and auto-detects capabilities for
// well-known hosts (OpenAI, Azure, Ollama). Use [Provider.WithAPIKey] and
// [Provider.WithBaseURL] to override these values programmatically.
//
// Streaming is available through [Provider.StreamMessage], which returns an
// [ai.EventStream] over the unified events. Hosts without reliable native
// function calling run in simulated tool-call mode: declarations travel in
// the system prompt and calls are recovered from trailing marker blocks in
// the visible text.
package openai
