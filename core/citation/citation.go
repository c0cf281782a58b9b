// Package citation assigns stable footnote indices to cited sources and
// renders inline markers. Grounded answers (Gemini search grounding, URL
// context) reference the same source repeatedly; the tracker guarantees one
// footnote per URL with indices in first-seen order.
package citation

import (
	"fmt"
	"strings"
)

// Source is one cited reference.
type Source struct {
	Title string
	URL   string
}

// Record is a source with its assigned 1-based index.
type Record struct {
	Source
	Index int
}

// Tracker assigns indices to sources as they are first observed within one
// stream. It is not safe for concurrent use; each stream owns its own tracker.
type Tracker struct {
	byURL   map[string]int
	records []Record
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{byURL: make(map[string]int)}
}

// FormatCitation returns the inline marker for the given source, allocating
// the next index on first sight of its URL. The same URL always yields the
// same marker, regardless of title drift between occurrences.
func (t *Tracker) FormatCitation(source Source) string {
	index, seen := t.byURL[source.URL]
	if !seen {
		index = len(t.records) + 1
		t.byURL[source.URL] = index
		t.records = append(t.records, Record{Source: source, Index: index})
	}
	return fmt.Sprintf("[%d]", index)
}

// Records returns every allocated record in allocation order.
func (t *Tracker) Records() []Record {
	return t.records
}

// GenerateFootnotes renders the footnote block: one line per allocated URL,
// in allocation order. Returns the empty string when nothing was cited.
func (t *Tracker) GenerateFootnotes() string {
	if len(t.records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\nSources:\n")
	for _, record := range t.records {
		title := record.Title
		if title == "" {
			title = record.URL
		}
		fmt.Fprintf(&sb, "[%d] %s (%s)\n", record.Index, title, record.URL)
	}
	return sb.String()
}
