package utils

import "fmt"

// TruncateString shortens s to at most maxLen characters, appending a suffix
// recording the original length so callers know data was omitted. Used to
// keep error messages and log lines bounded when vendor responses are large.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return fmt.Sprintf("%s... (truncated, total: %d chars)", s[:maxLen], len(s))
}
