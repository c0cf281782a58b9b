// Package gemini adapts the Gemini generateContent API to the unified
// streaming event protocol.
//
// The main entry point is [New], which reads GEMINI_API_KEY and
// GEMINI_API_BASE_URL from the environment. Streaming uses the
// streamGenerateContent endpoint with alt=sse; each chunk carries incremental
// text parts, complete function calls, and inline media.
//
// Grounded answers (google_search and url_context built-in tools) route their
// web sources through the citation tracker: every cited URL gets a stable
// footnote index and the footnote block is appended to the visible text.
// Generated images surface as file_complete events and are counted for
// per-image pricing in the final cost_update.
package gemini
