// Package ai defines the unified streaming event protocol and the
// provider-adapter contract shared by every vendor implementation (OpenAI,
// Anthropic, Gemini, and the offline lorem simulator). Each adapter's
// conversion layer maps these types to its own wire format, keeping the rest
// of the codebase decoupled from vendor-specific details.
//
// The protocol's currency is [StreamEvent], a tagged union covering text
// deltas, terminal completions, tool calls, binary artifacts, cost snapshots
// and inline errors. Adapters implement [StreamProvider]; callers consume an
// [EventStream] and may suspend it cooperatively through [Control].
package ai
