package summarize

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// DefaultSentences is how many sentences the extractive summarizer keeps.
const DefaultSentences = 5

// stopWords are excluded from frequency scoring.
var stopWords = map[string]struct{}{ //nolint: gochecknoglobals
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "not": {}, "of": {}, "on": {}, "or": {}, "said": {},
	"she": {}, "that": {}, "the": {}, "their": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "were": {}, "which": {}, "will": {},
	"with": {}, "you": {},
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)
var wordRe = regexp.MustCompile(`[a-zA-Z']+`)

// Extractive scores sentences by normalized word frequency and keeps the
// top-ranked ones in document order. It needs no network access.
type Extractive struct {
	// Sentences is the number of sentences to keep; zero means
	// DefaultSentences.
	Sentences int
}

// Summarize implements Summarizer.
func (e Extractive) Summarize(_ context.Context, text string) (string, error) {
	keep := e.Sentences
	if keep <= 0 {
		keep = DefaultSentences
	}

	sentences := splitSentences(text)
	if len(sentences) <= keep {
		return shorten(strings.Join(sentences, " "), MaxSummaryChars), nil
	}

	freq := wordFrequencies(text)

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		var total float64
		words := wordRe.FindAllString(strings.ToLower(s), -1)
		for _, w := range words {
			total += freq[w]
		}
		if len(words) > 0 {
			total /= float64(len(words))
		}
		ranked = append(ranked, scored{index: i, score: total})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	picked := ranked[:keep]
	sort.Slice(picked, func(i, j int) bool { return picked[i].index < picked[j].index })

	out := make([]string, 0, keep)
	for _, p := range picked {
		out = append(out, sentences[p.index])
	}

	return shorten(strings.Join(out, " "), MaxSummaryChars), nil
}

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	var sentences []string
	for _, part := range strings.Split(marked, "\x00") {
		for _, line := range strings.Split(part, "\n") {
			s := strings.TrimSpace(line)
			if s != "" {
				sentences = append(sentences, s)
			}
		}
	}

	return sentences
}

// wordFrequencies returns per-word occurrence counts normalized by the
// maximum count, with stop words removed.
func wordFrequencies(text string) map[string]float64 {
	counts := map[string]int{}
	maxCount := 0
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		counts[w]++
		if counts[w] > maxCount {
			maxCount = counts[w]
		}
	}

	freq := make(map[string]float64, len(counts))
	if maxCount == 0 {
		return freq
	}
	for w, c := range counts {
		freq[w] = float64(c) / float64(maxCount)
	}

	return freq
}

// Ensure Extractive conforms to Summarizer at compile time.
var _ Summarizer = Extractive{}
