// Package summarize condenses article text into the short summary posted to
// the channel. Two interchangeable strategies exist: an extractive scorer
// with no external calls, and a generative one backed by an OpenAI-compatible
// chat API.
package summarize

import "context"

// MaxSummaryChars bounds the summary so it fits a chat message with headroom
// for the title and byline.
const MaxSummaryChars = 1800

// Summarizer condenses text. Implementations must return a summary no longer
// than MaxSummaryChars.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// shorten trims s to at most limit bytes on a word boundary, appending an
// ellipsis when anything was cut.
func shorten(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit - len("...")
	for cut > 0 && s[cut] != ' ' {
		cut--
	}
	if cut == 0 {
		cut = limit - len("...")
	}

	return s[:cut] + "..."
}
