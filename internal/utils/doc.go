// Package utils provides shared low-level helpers for the provider adapters:
// HTTP POST helpers for synchronous and streaming (SSE) calls against vendor
// APIs, a typed [StatusError] the retry engine classifies on, and small
// generic conveniences like [Ptr] and [TruncateString].
package utils
