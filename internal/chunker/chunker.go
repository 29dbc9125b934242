// Package chunker splits extracted document text into AI-sized chunks and
// filters out noise such as bare page numbers and running headers.
package chunker

import "strings"

const (
	// DefaultMaxChunkSize bounds the text sent in one generation call.
	DefaultMaxChunkSize = 4000

	// minChunkLength drops fragments too short to carry study content.
	minChunkLength = 40
)

// Chunk splits text into pieces of at most maxChunkSize characters. Text that
// already fits is returned as a single trimmed chunk. Splitting happens on
// sentence boundaries; a single sentence over the limit falls back to
// word-boundary splitting for that sentence only. Chunks shorter than the
// minimum content threshold are dropped.
func Chunk(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= maxChunkSize {
		return []string{trimmed}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if len(chunk) >= minChunkLength {
			chunks = append(chunks, chunk)
		}
	}

	for _, sentence := range splitSentences(trimmed) {
		if len(sentence) > maxChunkSize {
			flush()
			for _, piece := range splitWords(sentence, maxChunkSize) {
				if len(piece) >= minChunkLength {
					chunks = append(chunks, piece)
				}
			}
			continue
		}
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// DistributeCount returns the per-chunk card count: ceil(total / chunkCount).
func DistributeCount(total, chunkCount int) int {
	if chunkCount <= 0 {
		return total
	}
	return (total + chunkCount - 1) / chunkCount
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace. Newlines also terminate sentences, which keeps headings and
// list items as separate fragments.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		atEnd := i == len(text)-1
		boundary := false
		switch ch {
		case '.', '!', '?':
			boundary = atEnd || text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t'
		case '\n':
			boundary = true
		}
		if !boundary {
			continue
		}
		sentence := strings.TrimSpace(text[start : i+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// splitWords accumulates words up to the limit. A single word longer than
// the limit is kept whole; it cannot be split further.
func splitWords(sentence string, maxChunkSize int) []string {
	var pieces []string
	var current strings.Builder
	for _, word := range strings.Fields(sentence) {
		if current.Len() > 0 && current.Len()+len(word)+1 > maxChunkSize {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}
