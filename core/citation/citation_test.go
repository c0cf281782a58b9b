package citation

import (
	"strings"
	"testing"
)

func TestFormatCitation_StableIndices(t *testing.T) {
	tracker := NewTracker()

	first := tracker.FormatCitation(Source{Title: "Go Blog", URL: "https://go.dev/blog"})
	second := tracker.FormatCitation(Source{Title: "Spec", URL: "https://go.dev/ref/spec"})
	repeat := tracker.FormatCitation(Source{Title: "Go Blog", URL: "https://go.dev/blog"})

	if first != "[1]" || second != "[2]" {
		t.Errorf("markers = %s, %s; want [1], [2]", first, second)
	}
	if repeat != first {
		t.Errorf("repeat marker = %s, want %s", repeat, first)
	}
	if len(tracker.Records()) != 2 {
		t.Errorf("records = %d, want 2 (no duplicate footnotes)", len(tracker.Records()))
	}
}

func TestFormatCitation_SameURLThreeTimes(t *testing.T) {
	tracker := NewTracker()
	source := Source{Title: "Docs", URL: "https://example.com/docs"}

	markers := []string{
		tracker.FormatCitation(source),
		tracker.FormatCitation(source),
		tracker.FormatCitation(source),
	}
	for _, marker := range markers {
		if marker != "[1]" {
			t.Fatalf("markers = %v, want three identical [1]", markers)
		}
	}

	footnotes := tracker.GenerateFootnotes()
	if strings.Count(footnotes, "https://example.com/docs") != 1 {
		t.Errorf("footnotes list the URL more than once:\n%s", footnotes)
	}
}

func TestFormatCitation_TitleDriftKeepsFirstTitle(t *testing.T) {
	tracker := NewTracker()
	tracker.FormatCitation(Source{Title: "Original", URL: "https://example.com"})
	tracker.FormatCitation(Source{Title: "Renamed", URL: "https://example.com"})

	records := tracker.Records()
	if len(records) != 1 || records[0].Title != "Original" {
		t.Errorf("records = %+v, want single record with first-seen title", records)
	}
}

func TestGenerateFootnotes(t *testing.T) {
	tracker := NewTracker()
	if tracker.GenerateFootnotes() != "" {
		t.Error("empty tracker must render no footnotes")
	}

	tracker.FormatCitation(Source{Title: "A", URL: "https://a.example"})
	tracker.FormatCitation(Source{URL: "https://b.example"}) // untitled

	footnotes := tracker.GenerateFootnotes()
	aPos := strings.Index(footnotes, "[1] A")
	bPos := strings.Index(footnotes, "[2] https://b.example")
	if aPos == -1 || bPos == -1 {
		t.Fatalf("footnotes missing entries:\n%s", footnotes)
	}
	if aPos > bPos {
		t.Error("footnotes out of allocation order")
	}
}
