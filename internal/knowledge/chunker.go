package knowledge

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// sentenceSeparators are searched in priority order; the first one found
// inside the window decides the cut.
var sentenceSeparators = []string{". ", ".\n", "? ", "?\n", "! ", "!\n"}

// SplitIntoChunks cuts text into overlapping windows of at most chunkSize
// bytes, preferring to end a window right after sentence punctuation.
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{strings.TrimSpace(text)}
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end < len(text) {
			end = sentenceBoundary(text, start, end)
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return chunks
}

func sentenceBoundary(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range sentenceSeparators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + 1
		}
	}
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
