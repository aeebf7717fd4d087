package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultSize is the default character budget of a chunk.
const DefaultSize = 1000

// Split groups the whitespace-delimited words of text into chunks of roughly
// size characters. Every word costs its length plus one separator; when the
// running cost exceeds size the current chunk is closed and the word starts a
// new one. Words are never split, so a single word longer than size becomes a
// chunk of its own. Empty or blank text yields no chunks.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	for _, word := range words {
		cost := utf8.RuneCountInString(word) + 1
		if length+cost > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			length = 0
		}
		current = append(current, word)
		length += cost
	}
	chunks = append(chunks, strings.Join(current, " "))

	return chunks
}
