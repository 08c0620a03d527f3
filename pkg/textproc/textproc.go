// Package textproc prepares article text for narration and file output:
// wrapping, chunking to the speech API's input budget, and the on-disk
// article format.
package textproc

import (
	"fmt"
	"strings"
)

const (
	// WrapWidth is the column at which paragraphs are wrapped.
	WrapWidth = 120
	// MaxChunk is the upper bound on one speech-synthesis input, in bytes.
	MaxChunk = 5000
)

// Wrap breaks a single paragraph into lines no longer than width columns.
// Words longer than the width are kept intact on their own line.
func Wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	lineLen := 0
	for i, w := range words {
		switch {
		case i == 0:
			b.WriteString(w)
			lineLen = len(w)
		case lineLen+1+len(w) <= width:
			b.WriteByte(' ')
			b.WriteString(w)
			lineLen += 1 + len(w)
		default:
			b.WriteByte('\n')
			b.WriteString(w)
			lineLen = len(w)
		}
	}

	return b.String()
}

// Chunk wraps each paragraph of text and packs the result into chunks of at
// most maxChunk bytes, splitting only on paragraph boundaries. A paragraph
// larger than maxChunk becomes its own chunk.
func Chunk(text string, maxChunk int) []string {
	if maxChunk <= 0 {
		maxChunk = MaxChunk
	}

	var formatted []string
	for _, p := range strings.Split(text, "\n") {
		formatted = append(formatted, Wrap(p, WrapWidth))
	}

	chunks := []string{""}
	for _, f := range formatted {
		piece := f + "\n"
		if len(chunks[len(chunks)-1])+len(piece) < maxChunk {
			chunks[len(chunks)-1] += piece
		} else {
			chunks = append(chunks, f)
		}
	}

	return chunks
}

// FormatArticle renders the article file written next to the narrated video:
// title, byline, date, then the wrapped body.
func FormatArticle(title, author, date, text string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n\n")
	if author != "" {
		fmt.Fprintf(&b, "By: %s\n", author)
	}
	if date != "" {
		fmt.Fprintf(&b, "Published: %s\n", date)
	}
	b.WriteString("\n")
	for _, p := range strings.Split(text, "\n") {
		b.WriteString(Wrap(p, WrapWidth))
		b.WriteString("\n")
	}

	return b.String()
}
