// Package webfetch is a demo tool that fetches a web page and converts the
// HTML to Markdown. The example programs register it to show a full
// tool-call round trip through the gateway's sequential queue.
package webfetch
