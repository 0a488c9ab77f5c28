package agent

import (
	"strings"
	"unicode/utf8"
)

const (
	// PlaceholderReply replaces replies that are empty or too short to send.
	PlaceholderReply = "Your weak words echo in the void."
	// MaxReplyRunes is the longest reply body sent before truncation.
	MaxReplyRunes = 500
	// Ellipsis marks a truncated reply.
	Ellipsis = "..."

	humanMarker = "Human:"
	minReplyLen = 3
)

// agentMarkers label agent turns; models sometimes restate them in their output.
var agentMarkers = []string{"Agent:", "AM:"}

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Sanitize turns raw model output into a presentable reply.
// It is pure and idempotent.
func Sanitize(raw string) string {
	s := raw

	// Keep only what follows the last agent marker.
	cut := -1
	markerLen := 0
	for _, m := range agentMarkers {
		if i := strings.LastIndex(s, m); i > cut {
			cut, markerLen = i, len(m)
		}
	}
	if cut >= 0 {
		s = s[cut+markerLen:]
	}

	// The model started writing the next human turn.
	if i := strings.Index(s, humanMarker); i >= 0 {
		s = s[:i]
	}

	s = strings.TrimSpace(newlineReplacer.Replace(s))

	n := utf8.RuneCountInString(s)
	if n < minReplyLen {
		return PlaceholderReply
	}
	if n > MaxReplyRunes {
		s = truncateRunes(s, MaxReplyRunes) + Ellipsis
	}
	return s
}

func truncateRunes(s string, max int) string {
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
